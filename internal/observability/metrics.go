package observability

import "github.com/prometheus/client_golang/prometheus"

// Domain counters for the OTP flows and the chat transport. Label values are
// drawn from small fixed sets ("chat"/"web", result codes, event kinds) so
// cardinality stays bounded.
var (
	OTPIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_issued_total",
			Help: "OTP sessions created and delivered, by channel.",
		},
		[]string{"channel"},
	)

	OTPIssueSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_issue_skipped_total",
			Help: "Issuance requests answered with an already active session, by channel.",
		},
		[]string{"channel"},
	)

	OTPDeliveryFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_delivery_failures_total",
			Help: "Issuances rolled back because the code could not be delivered, by channel.",
		},
		[]string{"channel"},
	)

	OTPVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_verifications_total",
			Help: "Verification attempts by result.",
		},
		[]string{"result"},
	)

	BotUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Inbound chat updates by parsed kind.",
		},
		[]string{"kind"},
	)

	BotTransportFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_transport_failures_total",
			Help: "Best-effort chat transport calls that failed, by operation.",
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(
		OTPIssued,
		OTPIssueSkipped,
		OTPDeliveryFailures,
		OTPVerifications,
		BotUpdates,
		BotTransportFailures,
	)
}
