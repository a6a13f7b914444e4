package handlers

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xiaot623/gogo/assistant/internal/adapter/agentclient"
	"github.com/xiaot623/gogo/assistant/internal/domain"
)

// RemoteSpec describes a handler served by an external endpoint.
type RemoteSpec struct {
	Capability `yaml:",inline"`
	Endpoint   string `yaml:"endpoint"`
}

type remoteFile struct {
	Handlers []RemoteSpec `yaml:"handlers"`
}

// LoadRemoteSpecs reads remote handler definitions. An empty path yields none.
func LoadRemoteSpecs(path string) ([]RemoteSpec, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read handlers file: %w", err)
	}
	return ParseRemoteSpecs(data)
}

// ParseRemoteSpecs decodes remote handler definitions.
func ParseRemoteSpecs(data []byte) ([]RemoteSpec, error) {
	var f remoteFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse handlers file: %w", err)
	}
	for _, s := range f.Handlers {
		if s.ID == "" || s.Endpoint == "" {
			return nil, fmt.Errorf("remote handler requires id and endpoint")
		}
		if s.Fallback {
			return nil, fmt.Errorf("remote handler %s cannot be the fallback", s.ID)
		}
	}
	return f.Handlers, nil
}

// RemoteHandler forwards queries to an external agent speaking SSE.
type RemoteHandler struct {
	spec   RemoteSpec
	client *agentclient.Client
}

// NewRemoteHandler creates a remote handler.
func NewRemoteHandler(spec RemoteSpec, client *agentclient.Client) *RemoteHandler {
	return &RemoteHandler{spec: spec, client: client}
}

func (h *RemoteHandler) ID() string { return h.spec.ID }

func (h *RemoteHandler) Capability() Capability { return h.spec.Capability }

// Handle streams the remote answer. Fragments keep the tags the remote sent;
// untagged fragments are dropped by the filter.
func (h *RemoteHandler) Handle(ctx context.Context, req Request) (Outcome, error) {
	invoke := &domain.RemoteInvokeRequest{
		HandlerID: h.spec.ID,
		ThreadID:  req.ThreadID,
		RequestID: req.RequestID,
		Query:     req.Query,
		User:      req.User,
		Context:   req.Context,
		Prior:     req.Prior,
	}

	var (
		resp domain.AgentResponse
		next string
		done bool
	)
	err := h.client.Invoke(ctx, h.spec.Endpoint, invoke, func(evt agentclient.SSEEvent) error {
		switch evt.Event {
		case agentclient.EventFragment:
			frag, err := agentclient.ParseFragmentEvent(evt.Data)
			if err != nil {
				return err
			}
			resp.Fragments = append(resp.Fragments, *frag)
		case agentclient.EventHandoff:
			ho, err := agentclient.ParseHandoffEvent(evt.Data)
			if err != nil {
				return err
			}
			next = ho.Next
		case agentclient.EventDone:
			d, err := agentclient.ParseDoneEvent(evt.Data)
			if err != nil {
				return err
			}
			resp.Provenance = []domain.Provenance{{HandlerID: h.spec.ID, Sources: d.Sources}}
			done = true
		case agentclient.EventError:
			e, err := agentclient.ParseErrorEvent(evt.Data)
			if err != nil {
				return err
			}
			return fmt.Errorf("remote handler error %s: %s", e.Code, e.Message)
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	if !done {
		return Outcome{}, fmt.Errorf("remote handler %s closed the stream without done", h.spec.ID)
	}
	if next != "" {
		return Continue(next, resp), nil
	}
	return Final(resp), nil
}
