package live

// Wire envelopes for the live analysis service. Outbound messages use
// snake_case field names; the service replies in camelCase. Inbound frames
// that match none of the known shapes are dropped.

type setupEnvelope struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model             string           `json:"model"`
	GenerationConfig  generationConfig `json:"generation_config"`
	SystemInstruction *content         `json:"system_instruction,omitempty"`
}

type generationConfig struct {
	Temperature        float64  `json:"temperature"`
	TopP               float64  `json:"top_p,omitempty"`
	TopK               int      `json:"top_k,omitempty"`
	ResponseModalities []string `json:"response_modalities,omitempty"`
}

type contentEnvelope struct {
	ClientContent clientContent `json:"client_content"`
}

type clientContent struct {
	Turns        []content `json:"turns"`
	TurnComplete bool      `json:"turn_complete"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// serverEnvelope is the union of inbound frame shapes. Exactly one of the
// pointer fields is set on a recognized frame.
type serverEnvelope struct {
	SetupComplete *struct{}      `json:"setupComplete"`
	ServerContent *serverContent `json:"serverContent"`
	Error         *serverError   `json:"error"`
}

type serverContent struct {
	ModelTurn    *modelTurn `json:"modelTurn"`
	TurnComplete bool       `json:"turnComplete"`
}

type modelTurn struct {
	Parts []serverPart `json:"parts"`
}

type serverPart struct {
	Text string `json:"text"`
}

type serverError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
