package ipc

// Request is one newline-delimited JSON command sent to the session owner.
type Request struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Response reports the outcome plus the session position after the command ran.
type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Section int    `json:"section"`
	Total   int    `json:"total,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
