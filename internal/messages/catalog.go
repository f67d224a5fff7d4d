package messages

import (
	"github.com/dkeye/Signalling/internal/domain"
	"github.com/pion/webrtc/v4"
)

const (
	TypeConfig            domain.MessageType = "config"
	TypeIdentify          domain.MessageType = "identify"
	TypeEndpointID        domain.MessageType = "endpointId"
	TypeEndpointIDConfirm domain.MessageType = "endpointIdConfirm"
	TypePing              domain.MessageType = "ping"
	TypePong              domain.MessageType = "pong"
	TypeOffer             domain.MessageType = "offer"
	TypeAnswer            domain.MessageType = "answer"
	TypeIceCandidate      domain.MessageType = "iceCandidate"
	TypePlayerCount       domain.MessageType = "playerCount"
)

type PeerConnectionOptions struct {
	ICEServers []webrtc.ICEServer `json:"iceServers,omitempty"`
}

// Config is sent by the server right after a connection is accepted.
type Config struct {
	domain.Base
	PeerConnectionOptions PeerConnectionOptions `json:"peerConnectionOptions"`
	ProtocolVersion       string                `json:"protocolVersion,omitempty"`
}

// Identify asks the peer to announce its endpoint id.
type Identify struct {
	domain.Base
}

type EndpointID struct {
	domain.Base
	ID              string `json:"id"`
	ProtocolVersion string `json:"protocolVersion,omitempty"`
}

type EndpointIDConfirm struct {
	domain.Base
	CommittedID string `json:"committedId"`
}

// Ping carries the sender's clock in milliseconds; Pong echoes it back.
type Ping struct {
	domain.Base
	Time int64 `json:"time"`
}

type Pong struct {
	domain.Base
	Time int64 `json:"time"`
}

type Offer struct {
	domain.Base
	SDP string `json:"sdp"`
}

type Answer struct {
	domain.Base
	SDP string `json:"sdp"`
}

type IceCandidate struct {
	domain.Base
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type PlayerCount struct {
	domain.Base
	Count int `json:"count"`
}

func NewConfig(opts PeerConnectionOptions, version string) *Config {
	return &Config{Base: domain.Base{Type: TypeConfig}, PeerConnectionOptions: opts, ProtocolVersion: version}
}

func NewIdentify() *Identify { return &Identify{Base: domain.Base{Type: TypeIdentify}} }

func NewEndpointID(id, version string) *EndpointID {
	return &EndpointID{Base: domain.Base{Type: TypeEndpointID}, ID: id, ProtocolVersion: version}
}

func NewEndpointIDConfirm(id string) *EndpointIDConfirm {
	return &EndpointIDConfirm{Base: domain.Base{Type: TypeEndpointIDConfirm}, CommittedID: id}
}

func NewPing(ms int64) *Ping { return &Ping{Base: domain.Base{Type: TypePing}, Time: ms} }

func NewPong(ms int64) *Pong { return &Pong{Base: domain.Base{Type: TypePong}, Time: ms} }

func NewOffer(sdp string) *Offer { return &Offer{Base: domain.Base{Type: TypeOffer}, SDP: sdp} }

func NewAnswer(sdp string) *Answer { return &Answer{Base: domain.Base{Type: TypeAnswer}, SDP: sdp} }

func NewIceCandidate(c webrtc.ICECandidateInit) *IceCandidate {
	return &IceCandidate{Base: domain.Base{Type: TypeIceCandidate}, Candidate: c}
}

func NewPlayerCount(n int) *PlayerCount {
	return &PlayerCount{Base: domain.Base{Type: TypePlayerCount}, Count: n}
}

// Default returns a registry holding every shape in this package.
func Default() *Registry {
	r := NewRegistry()
	r.Register(TypeConfig, func() domain.Message { return &Config{} })
	r.Register(TypeIdentify, func() domain.Message { return &Identify{} })
	r.Register(TypeEndpointID, func() domain.Message { return &EndpointID{} })
	r.Register(TypeEndpointIDConfirm, func() domain.Message { return &EndpointIDConfirm{} })
	r.Register(TypePing, func() domain.Message { return &Ping{} })
	r.Register(TypePong, func() domain.Message { return &Pong{} })
	r.Register(TypeOffer, func() domain.Message { return &Offer{} })
	r.Register(TypeAnswer, func() domain.Message { return &Answer{} })
	r.Register(TypeIceCandidate, func() domain.Message { return &IceCandidate{} })
	r.Register(TypePlayerCount, func() domain.Message { return &PlayerCount{} })
	return r
}
