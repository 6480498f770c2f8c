// Package web exposes a Transpiler to browsers over a websocket. Every text
// frame carries one request and is answered with one tagged result, so a
// diagnostic can never be mistaken for generated code.
package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/containerd/errdefs"
	"github.com/containerd/log"
	"github.com/gorilla/websocket"

	"github.com/MarcinKonowalczyk/breakfast/bf"
)

type Request struct {
	Source string `json:"source"`
}

type Error struct {
	// Kind is one of the Kind* constants
	Kind    string `json:"kind"`
	Message string `json:"message"`
	// Index of the offending command, for bracket errors. It is nil when the
	// error does not point at a command, and may legitimately be 0.
	Index *int `json:"index,omitempty"`
}

const (
	KindUnmatchedLoopEnd  = "unmatched_loop_end"
	KindUnclosedLoopStart = "unclosed_loop_start"
	KindInvalidRequest    = "invalid_request"
	KindInternal          = "internal"
)

// MaxFrameSize bounds a single incoming request frame.
const MaxFrameSize = 1 << 20

type Response struct {
	OK    bool   `json:"ok"`
	Code  string `json:"code,omitempty"`
	Error *Error `json:"error,omitempty"`
}

type Handler struct {
	transpiler bf.Transpiler
	upgrader   websocket.Upgrader
}

// NewHandler serves t to pages from any origin.
func NewHandler(t bf.Transpiler) *Handler {
	return &Handler{
		transpiler: t,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := log.WithLogger(r.Context(), log.G(r.Context()).WithField("remote", r.RemoteAddr))
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		log.G(ctx).WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(MaxFrameSize)
	log.G(ctx).Debug("client connected")

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if !isDecodeError(err) {
				log.G(ctx).WithError(err).Debug("client disconnected")
				return
			}
			// a frame that is not a request; tell the client and keep going
			log.G(ctx).WithError(err).Debug("invalid request")
			if err := conn.WriteJSON(Response{Error: &Error{Kind: KindInvalidRequest, Message: err.Error()}}); err != nil {
				return
			}
			continue
		}

		if err := conn.WriteJSON(h.respond(req)); err != nil {
			log.G(ctx).WithError(err).Warn("writing response")
			return
		}
	}
}

// isDecodeError reports whether err came from decoding a frame rather than
// from the connection itself.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

func (h *Handler) respond(req Request) Response {
	code, err := h.transpiler.Transpile(req.Source)
	if err == nil {
		return Response{OK: true, Code: code}
	}
	return Response{Error: describe(err)}
}

func describe(err error) *Error {
	e := &Error{Kind: KindInternal, Message: err.Error()}
	var bracketErr *bf.BracketError
	switch {
	case errors.As(err, &bracketErr):
		index := bracketErr.Index
		e.Index = &index
		if errors.Is(err, bf.ErrUnclosedLoopStart) {
			e.Kind = KindUnclosedLoopStart
		} else {
			e.Kind = KindUnmatchedLoopEnd
		}
	case errors.Is(err, bf.ErrUnclosedLoopStart):
		e.Kind = KindUnclosedLoopStart
	case errors.Is(err, bf.ErrUnmatchedLoopEnd):
		e.Kind = KindUnmatchedLoopEnd
	case errdefs.IsInvalidArgument(err):
		e.Kind = KindInvalidRequest
	}
	return e
}
