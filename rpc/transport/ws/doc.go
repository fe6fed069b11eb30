// Package ws implements the bridge transport over websockets, for hosts that run
// inside a browser and can only reach the bridge over HTTP.
//
// The bridge upgrades GET /bridge requests. The frames of the base transport are
// sent in binary messages; receivers treat the messages as one byte stream, so a
// frame may span several messages.
//
// Key Components:
//
//   - conn: Presents a websocket as a net.Conn. Regular close frames end the stream
//     like EOF.
//
//   - serverConnector: Serves the upgrade route with httprouter and pings every
//     session, a host that stops answering is disconnected after a minute.
//
//   - clientConnector: Dials ws://host:port/bridge, or a full ws:// or wss:// URL.
package ws
