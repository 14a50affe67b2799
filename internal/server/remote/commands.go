// Package remote carries service capabilities across the bus. For every
// capability interface in the services package it provides a caller-side
// adapter built on the correlation router and a responder-side handler set
// bridging the owning service onto its command topic.
package remote

import "github.com/buffermesh/buffermesh/internal/server/models"

// Command and response kinds per service role. Caller and responder must
// agree on these; they are part of the wire contract.
const (
	KindTokenVerify  = "token_verify"
	KindTokenSubject = "token_subject"

	KindBufferGet       = "buffer_get"
	KindBuffer          = "buffer"
	KindBuffersByDevice = "buffers_by_device"
	KindBuffers         = "buffers"

	KindSchemeGet       = "scheme_get"
	KindScheme          = "scheme"
	KindSchemesByBuffer = "schemes_by_buffer"
	KindSchemes         = "schemes"

	KindDeviceGet = "device_get"
	KindDevice    = "device"
)

type tokenVerifyCommand struct {
	Token string `json:"token"`
}

type tokenSubjectResponse struct {
	ClientUID string `json:"client_uid"`
}

type uidCommand struct {
	UID string `json:"uid"`
}

type bufferResponse struct {
	Buffer *models.Buffer `json:"buffer"`
}

type buffersResponse struct {
	Buffers []*models.Buffer `json:"buffers"`
}

type schemeResponse struct {
	Scheme *models.ConnectionScheme `json:"scheme"`
}

type schemesResponse struct {
	Schemes []*models.ConnectionScheme `json:"schemes"`
}

type deviceResponse struct {
	Device *models.Device `json:"device"`
}
