package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/appforge/internal/sessions"
)

func (s *Server) listSessions(c echo.Context) error {
	filter := sessions.Status(c.QueryParam("status"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	list, err := s.deps.Store.List(c.Request().Context(), userID(c), filter, limit, offset)
	if err != nil {
		return httpError(err)
	}
	if list == nil {
		list = []*sessions.Session{}
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) getSession(c echo.Context) error {
	session, err := s.deps.Store.Get(c.Request().Context(), c.Param("id"), userID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, session)
}

func (s *Server) cancelSession(c echo.Context) error {
	status, err := s.deps.Runner.Cancel(c.Request().Context(), c.Param("id"), userID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": string(status)})
}

func (s *Server) deleteSession(c echo.Context) error {
	if err := s.deps.Store.Delete(c.Request().Context(), c.Param("id"), userID(c)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// streamSession relays session events over SSE. Frames are JSON in `data:`
// lines; the stream opens with a connected event and closes with a literal
// [DONE] frame once the session reaches a terminal state. There is no replay:
// a subscriber sees the current state and whatever happens after.
func (s *Server) streamSession(c echo.Context) error {
	session, err := s.deps.Store.Get(c.Request().Context(), c.Param("id"), userID(c))
	if err != nil {
		return httpError(err)
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	writeEvent := func(event sessions.Event) error {
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(resp, "data: %s\n\n", data); err != nil {
			return err
		}
		resp.Flush()
		return nil
	}
	writeDone := func() {
		fmt.Fprint(resp, "data: [DONE]\n\n")
		resp.Flush()
	}
	writeTerminal := func(sn *sessions.Session) {
		terminal := sessions.Event{
			Type:     string(sn.Status),
			Status:   sn.Status,
			Message:  sn.Error,
			Files:    sn.Files,
			Metadata: sn.Metadata,
			Warnings: sn.Warnings,
		}
		if err := writeEvent(terminal); err == nil {
			writeDone()
		}
	}

	if err := writeEvent(sessions.Event{Type: "connected", Status: session.Status}); err != nil {
		return nil
	}

	// Already over: emit the terminal snapshot and close
	if sessions.IsTerminal(session.Status) {
		writeTerminal(session)
		return nil
	}

	events, cancel := s.deps.Hub.Subscribe(session.ID)
	defer cancel()

	ctx := c.Request().Context()

	// The terminal event may have been published between the lookup above and
	// the subscribe; re-check so the client still gets the closing frames.
	if current, err := s.deps.Store.Get(ctx, session.ID, userID(c)); err == nil && sessions.IsTerminal(current.Status) {
		writeTerminal(current)
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeEvent(event); err != nil {
				return nil
			}
			if sessions.IsTerminal(event.Status) {
				writeDone()
				return nil
			}
		}
	}
}
