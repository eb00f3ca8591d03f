package domain

// RiskTier is the coarse bucket produced by the scoring model.
type RiskTier string

const (
	RiskTierLow      RiskTier = "low"
	RiskTierMedium   RiskTier = "medium"
	RiskTierHigh     RiskTier = "high"
	RiskTierCritical RiskTier = "critical"
)

// ParseRiskTier returns the tier matching value, reporting false for unknown tiers.
func ParseRiskTier(value string) (RiskTier, bool) {
	switch RiskTier(value) {
	case RiskTierLow, RiskTierMedium, RiskTierHigh, RiskTierCritical:
		return RiskTier(value), true
	default:
		return "", false
	}
}

// AtLeast reports whether t is at or above other in severity.
func (t RiskTier) AtLeast(other RiskTier) bool {
	return t.rank() >= other.rank()
}

func (t RiskTier) rank() int {
	switch t {
	case RiskTierMedium:
		return 1
	case RiskTierHigh:
		return 2
	case RiskTierCritical:
		return 3
	default:
		return 0
	}
}

// RiskAssessment is the outcome of one scoring call.
// Degraded marks the fail-open default returned when the scorer was unavailable.
type RiskAssessment struct {
	AnomalyScore float64  `json:"anomalyScore"`
	Tier         RiskTier `json:"riskTier"`
	Degraded     bool     `json:"-"`
}

// FailOpenAssessment is the assessment used when the scorer cannot answer.
func FailOpenAssessment() RiskAssessment {
	return RiskAssessment{AnomalyScore: 0, Tier: RiskTierLow, Degraded: true}
}

// DecisionAction is the outcome of the access decision gate.
type DecisionAction string

const (
	DecisionAllow        DecisionAction = "allow"
	DecisionAllowFlagged DecisionAction = "allow_flagged"
	DecisionBlock        DecisionAction = "block"
)

// ReasonRiskBlocked is the stable reason code attached to blocked requests.
const ReasonRiskBlocked = "RISK_BLOCKED"

// Decision is the gate's verdict for one assessment.
type Decision struct {
	Action     DecisionAction
	Reason     string
	Assessment RiskAssessment
	Alerted    bool
	Alert      *Alert
}

// Blocked reports whether the request must be rejected.
func (d Decision) Blocked() bool {
	return d.Action == DecisionBlock
}
