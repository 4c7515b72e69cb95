package auth

import "github.com/systmms/afipws/pkg/soap"

// LoginRequest is the loginCms call carrying a signed ticket.
type LoginRequest struct {
	soap.BaseRequest
	TicketPayload string
}

// NewLoginRequest addresses the WSAA service registered as serviceName
func NewLoginRequest(serviceName, ticketPayload string) *LoginRequest {
	return &LoginRequest{
		BaseRequest:   soap.NewBaseRequest(serviceName, LoginOperation),
		TicketPayload: ticketPayload,
	}
}

func (r *LoginRequest) Build() (string, error) {
	env := soap.NewEnvelope(map[string]string{"wsaa": Namespace})
	op := env.Body.CreateElement("wsaa:" + LoginOperation)
	op.CreateElement("wsaa:in0").SetText(r.TicketPayload)
	return env.String()
}
