package remote

import (
	"context"
	"encoding/json"

	"github.com/buffermesh/buffermesh/internal/bus"
	"github.com/buffermesh/buffermesh/internal/server/services"
)

// RegisterAuthHandlers exposes the auth service's token verification on
// its command topic.
func RegisterAuthHandlers(r *bus.Responder, verifier services.TokenVerifier) {
	r.Handle(KindTokenVerify, func(ctx context.Context, body json.RawMessage) (string, any, error) {
		cmd := tokenVerifyCommand{}
		if err := json.Unmarshal(body, &cmd); err != nil {
			return "", nil, err
		}
		clientUID, err := verifier.VerifyAccessToken(ctx, cmd.Token)
		if err != nil {
			return "", nil, err
		}
		return KindTokenSubject, tokenSubjectResponse{ClientUID: clientUID}, nil
	})
}

// RegisterBufferHandlers exposes buffer lookups on the buffer service's
// command topic.
func RegisterBufferHandlers(r *bus.Responder, buffers services.BufferDirectory) {
	r.Handle(KindBufferGet, func(ctx context.Context, body json.RawMessage) (string, any, error) {
		cmd := uidCommand{}
		if err := json.Unmarshal(body, &cmd); err != nil {
			return "", nil, err
		}
		buffer, err := buffers.GetBuffer(ctx, cmd.UID)
		if err != nil {
			return "", nil, err
		}
		return KindBuffer, bufferResponse{Buffer: buffer}, nil
	})
	r.Handle(KindBuffersByDevice, func(ctx context.Context, body json.RawMessage) (string, any, error) {
		cmd := uidCommand{}
		if err := json.Unmarshal(body, &cmd); err != nil {
			return "", nil, err
		}
		out, err := buffers.BuffersByDevice(ctx, cmd.UID)
		if err != nil {
			return "", nil, err
		}
		return KindBuffers, buffersResponse{Buffers: out}, nil
	})
}

// RegisterSchemeHandlers exposes scheme lookups on the scheme service's
// command topic.
func RegisterSchemeHandlers(r *bus.Responder, schemes services.SchemeDirectory) {
	r.Handle(KindSchemeGet, func(ctx context.Context, body json.RawMessage) (string, any, error) {
		cmd := uidCommand{}
		if err := json.Unmarshal(body, &cmd); err != nil {
			return "", nil, err
		}
		scheme, err := schemes.GetScheme(ctx, cmd.UID)
		if err != nil {
			return "", nil, err
		}
		return KindScheme, schemeResponse{Scheme: scheme}, nil
	})
	r.Handle(KindSchemesByBuffer, func(ctx context.Context, body json.RawMessage) (string, any, error) {
		cmd := uidCommand{}
		if err := json.Unmarshal(body, &cmd); err != nil {
			return "", nil, err
		}
		out, err := schemes.SchemesUsingBuffer(ctx, cmd.UID)
		if err != nil {
			return "", nil, err
		}
		return KindSchemes, schemesResponse{Schemes: out}, nil
	})
}

// RegisterDeviceHandlers exposes device lookups on the device service's
// command topic.
func RegisterDeviceHandlers(r *bus.Responder, devices services.DeviceDirectory) {
	r.Handle(KindDeviceGet, func(ctx context.Context, body json.RawMessage) (string, any, error) {
		cmd := uidCommand{}
		if err := json.Unmarshal(body, &cmd); err != nil {
			return "", nil, err
		}
		device, err := devices.GetDevice(ctx, cmd.UID)
		if err != nil {
			return "", nil, err
		}
		return KindDevice, deviceResponse{Device: device}, nil
	})
}
