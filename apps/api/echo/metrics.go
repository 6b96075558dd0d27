package echoapi

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	replies  *prometheus.CounterVec
	feedback *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shuleboard",
			Subsystem: "chatbot",
			Name:      "replies_total",
			Help:      "Chatbot replies by source and confidence.",
		}, []string{"source", "confidence"}),
		feedback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shuleboard",
			Subsystem: "chatbot",
			Name:      "feedback_total",
			Help:      "Chatbot reply ratings.",
		}, []string{"feedback"}),
	}
	reg.MustRegister(m.replies, m.feedback)
	return m
}
