package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// MediaConnection is the server side of a negotiated peer connection.
type MediaConnection interface {
	// Start configures internal callbacks and binds the connection lifetime to ctx.
	Start(ctx context.Context) error
	// Close should stop all underlying media resources.
	Close()
	// ApplyOffer sets the remote offer and returns the local answer.
	ApplyOffer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error)
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnClosed sets a callback for media session cleanup.
	OnClosed(func())
}
