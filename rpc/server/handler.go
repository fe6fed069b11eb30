package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/netstack/lib/registry"
	"github.com/ValentinKolb/netstack/lib/socket"
	"github.com/ValentinKolb/netstack/rpc/common"
	"github.com/ValentinKolb/netstack/rpc/transport"
)

// sessionHandler implements transport.IRPCSessionHandler on top of one registry
// per session
type sessionHandler struct {
	server *RPCServer
}

// pushSink forwards the events of a registry to its session
type pushSink struct {
	server  *RPCServer
	session transport.ISession
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCSessionHandler)
// --------------------------------------------------------------------------

func (h *sessionHandler) OpenSession(session transport.ISession) error {
	sink := &pushSink{server: h.server, session: session}
	r := registry.New(sink, h.server.registryConfig)
	h.server.sessions.Store(session.ID(), r)
	return nil
}

func (h *sessionHandler) Handle(session transport.ISession, req []byte) []byte {
	var respMsg *common.Message

	r, ok := h.server.sessions.Load(session.ID())
	if !ok {
		respMsg = common.NewErrorResponse(fmt.Sprintf("session %d is not open", session.ID()))
	} else {
		// Decode the request
		var msg common.Message
		if err := h.server.serializer.Deserialize(req, &msg); err != nil {
			respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
		} else {
			respMsg = handleMessage(r, &msg)
		}
	}

	val, err := h.server.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = h.server.serializer.Serialize(*common.NewErrorResponse(
			fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

func (h *sessionHandler) CloseSession(session transport.ISession) {
	r, ok := h.server.sessions.LoadAndDelete(session.ID())
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		Logger.Warningf("session %d: %v", session.ID(), err)
	}
	Logger.Infof("session %d released", session.ID())
}

// --------------------------------------------------------------------------
// Event Forwarding
// --------------------------------------------------------------------------

// Emit serializes an event and pushes it to the host. Failures are logged, a host
// that stopped reading does not hold up the registry.
func (p *pushSink) Emit(identifier int, event socket.Event) {
	msg, err := common.NewEventMessage(event)
	if err != nil {
		Logger.Errorf("session %d: %v", p.session.ID(), err)
		return
	}
	data, err := p.server.serializer.Serialize(*msg)
	if err != nil {
		Logger.Errorf("session %d: failed to serialize %s: %v", p.session.ID(), event, err)
		return
	}
	if err := p.session.Push(data); err != nil {
		Logger.Debugf("session %d: failed to push %s: %v", p.session.ID(), event, err)
	}
}

// --------------------------------------------------------------------------
// Command Handling
// --------------------------------------------------------------------------

// handleMessage runs one host command against the registry of the session and
// returns its response. The outcome of asynchronous operations arrives as events.
func handleMessage(r *registry.Registry, req *common.Message) *common.Message {
	switch req.MsgType {
	case common.MsgTCreate:
		id, err := r.Create()
		return common.NewResponse(req.MsgType, id, err)

	case common.MsgTConnect:
		if req.Identifier == 0 {
			opts, err := socket.DecodeOptions(req.Options)
			if err != nil {
				return common.NewResponse(req.MsgType, 0,
					socket.NewError(socket.StreamError, "invalid connect options", err))
			}
			id, err := r.Connect(req.Host, req.Port, opts)
			return common.NewResponse(req.MsgType, id, err)
		}
		return dispatch(r, req, registry.CmdConnect)

	case common.MsgTListen:
		if req.Identifier == 0 {
			id, err := r.Listen(req.Host, req.Port)
			return common.NewResponse(req.MsgType, id, err)
		}
		return dispatch(r, req, registry.CmdListen)

	case common.MsgTRead:
		return dispatch(r, req, registry.CmdRead)
	case common.MsgTWrite:
		return dispatch(r, req, registry.CmdWrite)
	case common.MsgTClose:
		return dispatch(r, req, registry.CmdClose)
	case common.MsgTDescribe:
		return dispatch(r, req, registry.CmdDescribe)
	case common.MsgTAccept:
		return dispatch(r, req, registry.CmdAccept)

	case common.MsgTStats:
		meta, err := json.Marshal(r.Stats())
		resp := common.NewResponse(req.MsgType, 0, err)
		resp.Meta = meta
		return resp

	default:
		return common.NewErrorResponse(fmt.Sprintf("unsupported message type: %s", req.MsgType))
	}
}

// dispatch routes a per-socket command through the registry
func dispatch(r *registry.Registry, req *common.Message, cmd registry.Command) *common.Message {
	res, err := r.Dispatch(req.Identifier, cmd, registry.Args{
		Host:      req.Host,
		Port:      req.Port,
		Options:   req.Options,
		MaxLength: req.MaxLength,
		Exact:     req.Exact,
		Until:     req.Until,
		Skip:      req.Skip,
		Data:      req.Data,
	})
	resp := common.NewResponse(req.MsgType, req.Identifier, err)
	resp.Descriptor = res.Descriptor
	return resp
}
