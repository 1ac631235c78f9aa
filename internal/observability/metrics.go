package observability

import (
	"sync"

	"github.com/danmuck/skmux/internal/protocol"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

var (
	registerOnce sync.Once

	muxFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skmux",
			Subsystem: "mux",
			Name:      "frames_total",
			Help:      "MUX frames by direction, frame type and data sub-type.",
		},
		[]string{"direction", "type", "data_type"},
	)
	muxBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skmux",
			Subsystem: "mux",
			Name:      "bytes_total",
			Help:      "Encoded MUX bytes by direction, header included.",
		},
		[]string{"direction"},
	)
	muxCodecErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skmux",
			Subsystem: "mux",
			Name:      "codec_errors_total",
			Help:      "MUX encode/decode failures by direction and protocol error kind.",
		},
		[]string{"direction", "kind"},
	)
	clientConnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skmux",
			Subsystem: "client",
			Name:      "connects_total",
			Help:      "Client connection attempts by result.",
		},
		[]string{"result"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(muxFrames, muxBytes, muxCodecErrors, clientConnects)
	})
}

func RecordFrame(direction, frameType, dataType string, size int) {
	RegisterMetrics()
	muxFrames.WithLabelValues(direction, frameType, dataType).Inc()
	muxBytes.WithLabelValues(direction).Add(float64(size))
}

func RecordCodecError(direction string, err error) {
	RegisterMetrics()
	muxCodecErrors.WithLabelValues(direction, protocol.KindLabel(err)).Inc()
}

func RecordConnect(success bool) {
	RegisterMetrics()
	result := "success"
	if !success {
		result = "failure"
	}
	clientConnects.WithLabelValues(result).Inc()
}
