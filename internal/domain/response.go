package domain

// Fragment is the smallest taggable unit of an answer.
type Fragment struct {
	Text    string           `json:"text"`
	Level   SensitivityLevel `json:"sensitivity_level"`
	Kind    FieldKind        `json:"field_kind"`
	Project string           `json:"project,omitempty"`
	// Subject names what a budget figure belongs to, used when the figure is bucketed.
	Subject string `json:"subject,omitempty"`
	// Amount is the exact figure of a budget fragment, in dollars.
	Amount   *float64 `json:"amount,omitempty"`
	Bucketed bool     `json:"bucketed,omitempty"`
	// HandlerID is the handler that produced the fragment.
	HandlerID string `json:"handler_id,omitempty"`
}

// Provenance records where a handler's answer came from.
type Provenance struct {
	HandlerID string   `json:"handler_id"`
	Sources   []string `json:"sources,omitempty"`
}

// AgentResponse is the unfiltered output of one or more handlers.
type AgentResponse struct {
	Fragments  []Fragment   `json:"fragments"`
	Provenance []Provenance `json:"provenance,omitempty"`
	// Restricted carries the restriction flag when a filtered response is re-filtered.
	Restricted bool `json:"restricted,omitempty"`
}

// RestrictedNotice is the only trace left by dropped content.
const RestrictedNotice = "Some content was withheld: insufficient permissions."

// FilteredResponse is what a caller is allowed to see.
type FilteredResponse struct {
	Fragments  []Fragment    `json:"fragments"`
	Provenance []Provenance  `json:"provenance,omitempty"`
	Restricted bool          `json:"restricted"`
	Notice     string        `json:"notice,omitempty"`
	Meta       *ResponseMeta `json:"meta,omitempty"`
}

// ResponseMeta carries routing observations for the caller.
type ResponseMeta struct {
	ThreadID      string      `json:"thread_id"`
	MessageID     string      `json:"message_id,omitempty"`
	Mode          RoutingMode `json:"mode"`
	Handlers      []string    `json:"handlers"`
	Unavailable   []string    `json:"unavailable,omitempty"`
	LowConfidence bool        `json:"low_confidence"`
}

// AsResponse turns a filtered response back into filter input.
func (r FilteredResponse) AsResponse() AgentResponse {
	frags := make([]Fragment, len(r.Fragments))
	copy(frags, r.Fragments)
	return AgentResponse{
		Fragments:  frags,
		Provenance: r.Provenance,
		Restricted: r.Restricted,
	}
}

// Text renders the visible fragments as a single answer.
func (r FilteredResponse) Text() string {
	var out string
	for i, f := range r.Fragments {
		if i > 0 {
			out += "\n"
		}
		out += f.Text
	}
	if r.Notice != "" {
		if out != "" {
			out += "\n"
		}
		out += r.Notice
	}
	return out
}

// HandlerIDs returns the provenance handler ids in order.
func (r FilteredResponse) HandlerIDs() []string {
	ids := make([]string, 0, len(r.Provenance))
	for _, p := range r.Provenance {
		ids = append(ids, p.HandlerID)
	}
	return ids
}
