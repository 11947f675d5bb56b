// Package metrics exposes Prometheus instruments for the messaging service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesSentTotal counts persisted messages by type.
	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Total number of messages persisted",
		},
		[]string{"type"},
	)

	// ReadReceiptsTotal counts actual unread-to-read transitions.
	ReadReceiptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_read_receipts_total",
			Help: "Total number of messages transitioned to read",
		},
	)

	// MessagesDeletedTotal counts soft deletions.
	MessagesDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_deleted_total",
			Help: "Total number of soft-deleted messages",
		},
	)

	// ConversationsCreatedTotal counts conversations opened, split by whether
	// a listing was attached.
	ConversationsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_conversations_created_total",
			Help: "Total number of conversations created",
		},
		[]string{"with_item"},
	)

	// ActiveConnections tracks open realtime sessions.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_connections",
			Help: "Number of open realtime connections",
		},
	)

	// OnlineUsers tracks users with at least one open session.
	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_online_users",
			Help: "Number of users with at least one open connection",
		},
	)

	// RealtimeEventsTotal counts inbound realtime events by type and outcome.
	RealtimeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_total",
			Help: "Total number of inbound realtime events",
		},
		[]string{"event", "outcome"},
	)

	// DroppedDeliveriesTotal counts outbound frames dropped on full buffers.
	DroppedDeliveriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_ws_dropped_deliveries_total",
			Help: "Total number of outbound frames dropped because a client buffer was full",
		},
	)
)

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func RecordConversationCreated(withItem bool) {
	ConversationsCreatedTotal.WithLabelValues(boolLabel(withItem)).Inc()
}

func RecordMessageSent(messageType string) {
	MessagesSentTotal.WithLabelValues(messageType).Inc()
}

func RecordRealtimeEvent(event string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	RealtimeEventsTotal.WithLabelValues(event, outcome).Inc()
}
