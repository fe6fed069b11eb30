// Package common provides the data structures shared between the bridge server,
// the bridge client and the command line tools.
//
// The package focuses on:
//   - Message protocol definition for host and bridge communication
//   - Configuration structures for the bridge server and client
//   - Custom logging implementation integrated with the Dragonboat logger
//
// Key Components:
//
//   - Message: Core data structure for every request, response and pushed event.
//     Which fields are set depends on the message type. Factory functions exist for
//     all host commands, and NewEventMessage / Message.Event convert between socket
//     events and pushed messages.
//
//   - MessageType: Enumeration of all message types, split into general responses,
//     host commands and pushed events.
//
//   - ServerConfig: Configuration of a bridge server: transport, serializer, socket
//     options applied to every connection and the optional metrics endpoint.
//     ToRegistryConfig turns it into the configuration of a socket registry.
//
//   - ClientConfig: Configuration of a bridge client.
//
//   - Logger: Logging implementation that plugs into the Dragonboat logger factory
//     so every package logs with the same format and level handling.
package common
