package remote

import (
	"context"
	"time"

	"github.com/buffermesh/buffermesh/internal/bus"
	"github.com/buffermesh/buffermesh/internal/server/models"
)

// Caller holds the pieces every bus-backed adapter needs: the correlation
// router, the topic namespace, and the per-call timeout.
type Caller struct {
	router  *bus.Router
	prefix  string
	timeout time.Duration
}

func NewCaller(router *bus.Router, prefix string, timeout time.Duration) *Caller {
	return &Caller{router: router, prefix: prefix, timeout: timeout}
}

// CheckHealth asks the named service role for a liveness response.
func (c *Caller) CheckHealth(ctx context.Context, service string) error {
	_, err := bus.Call[bus.HealthStatus](ctx, c.router, bus.CommandTopic(c.prefix, service),
		bus.KindHealthCheck, struct{}{}, bus.KindHealthStatus, c.timeout)
	return err
}

// TokenVerifier resolves access tokens through the auth service role.
type TokenVerifier struct {
	c *Caller
}

func NewTokenVerifier(c *Caller) *TokenVerifier {
	return &TokenVerifier{c: c}
}

func (v *TokenVerifier) VerifyAccessToken(ctx context.Context, token string) (string, error) {
	res, err := bus.Call[tokenSubjectResponse](ctx, v.c.router, bus.CommandTopic(v.c.prefix, "auth"),
		KindTokenVerify, tokenVerifyCommand{Token: token}, KindTokenSubject, v.c.timeout)
	if err != nil {
		return "", err
	}
	return res.ClientUID, nil
}

// BufferDirectory resolves buffers through the buffer service role.
type BufferDirectory struct {
	c *Caller
}

func NewBufferDirectory(c *Caller) *BufferDirectory {
	return &BufferDirectory{c: c}
}

func (d *BufferDirectory) GetBuffer(ctx context.Context, uid string) (*models.Buffer, error) {
	res, err := bus.Call[bufferResponse](ctx, d.c.router, bus.CommandTopic(d.c.prefix, "buffer"),
		KindBufferGet, uidCommand{UID: uid}, KindBuffer, d.c.timeout)
	if err != nil {
		return nil, err
	}
	return res.Buffer, nil
}

func (d *BufferDirectory) BuffersByDevice(ctx context.Context, deviceUID string) ([]*models.Buffer, error) {
	res, err := bus.Call[buffersResponse](ctx, d.c.router, bus.CommandTopic(d.c.prefix, "buffer"),
		KindBuffersByDevice, uidCommand{UID: deviceUID}, KindBuffers, d.c.timeout)
	if err != nil {
		return nil, err
	}
	return res.Buffers, nil
}

// SchemeDirectory resolves connection schemes through the scheme service
// role.
type SchemeDirectory struct {
	c *Caller
}

func NewSchemeDirectory(c *Caller) *SchemeDirectory {
	return &SchemeDirectory{c: c}
}

func (d *SchemeDirectory) GetScheme(ctx context.Context, uid string) (*models.ConnectionScheme, error) {
	res, err := bus.Call[schemeResponse](ctx, d.c.router, bus.CommandTopic(d.c.prefix, "scheme"),
		KindSchemeGet, uidCommand{UID: uid}, KindScheme, d.c.timeout)
	if err != nil {
		return nil, err
	}
	return res.Scheme, nil
}

func (d *SchemeDirectory) SchemesUsingBuffer(ctx context.Context, bufferUID string) ([]*models.ConnectionScheme, error) {
	res, err := bus.Call[schemesResponse](ctx, d.c.router, bus.CommandTopic(d.c.prefix, "scheme"),
		KindSchemesByBuffer, uidCommand{UID: bufferUID}, KindSchemes, d.c.timeout)
	if err != nil {
		return nil, err
	}
	return res.Schemes, nil
}

// DeviceDirectory resolves devices through the device service role.
type DeviceDirectory struct {
	c *Caller
}

func NewDeviceDirectory(c *Caller) *DeviceDirectory {
	return &DeviceDirectory{c: c}
}

func (d *DeviceDirectory) GetDevice(ctx context.Context, uid string) (*models.Device, error) {
	res, err := bus.Call[deviceResponse](ctx, d.c.router, bus.CommandTopic(d.c.prefix, "device"),
		KindDeviceGet, uidCommand{UID: uid}, KindDevice, d.c.timeout)
	if err != nil {
		return nil, err
	}
	return res.Device, nil
}
