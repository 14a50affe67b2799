// Package common contains shared constants and sentinel errors used across
// buffermesh components.
package common

// AccessTokenHeaderName is the HTTP header used to carry the bearer access
// token on inbound requests.
const AccessTokenHeaderName = "Authorization"
