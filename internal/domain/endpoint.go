// Package domain contains entities without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const MaxEndpointIDLen = 64

var (
	ErrEndpointIDEmpty   = errors.New("endpoint id empty")
	ErrEndpointIDTooLong = errors.New("endpoint id too long")
)

type EndpointID string

// Endpoint is a peer known to the signalling server.
type Endpoint struct {
	ID              EndpointID `json:"id"`
	ProtocolVersion string     `json:"protocolVersion,omitempty"`
}

// NewEndpoint validates the id an endpoint asked for.
func NewEndpoint(id, protocolVersion string) (*Endpoint, error) {
	id = strings.TrimSpace(id)
	if len(id) == 0 {
		return nil, ErrEndpointIDEmpty
	}
	if len(id) > MaxEndpointIDLen {
		return nil, ErrEndpointIDTooLong
	}
	return &Endpoint{ID: EndpointID(id), ProtocolVersion: protocolVersion}, nil
}
