package monitor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/money"
)

// AlertKind classifies what the monitor observed
type AlertKind int

const (
	// KindDeviation fires when a rate moved more than the threshold
	// between two samples
	KindDeviation AlertKind = iota
	// KindZeroRate fires when a vault reports a zero per-share rate
	KindZeroRate
	// KindFetchFailure fires when a vault's rate could not be read
	KindFetchFailure
)

// String returns string representation of the alert kind
func (k AlertKind) String() string {
	switch k {
	case KindDeviation:
		return "deviation"
	case KindZeroRate:
		return "zero_rate"
	case KindFetchFailure:
		return "fetch_failure"
	default:
		return "unknown"
	}
}

// MarshalJSON implements JSON marshaling for AlertKind
func (k AlertKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements JSON unmarshaling for AlertKind
func (k *AlertKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "deviation":
		*k = KindDeviation
	case "zero_rate":
		*k = KindZeroRate
	case "fetch_failure":
		*k = KindFetchFailure
	default:
		return fmt.Errorf("unknown alert kind %q", s)
	}
	return nil
}

// Alert describes one anomalous rate observation. Rates are serialized as
// decimal strings so downstream consumers never lose precision.
type Alert struct {
	AlertID      string    `json:"alert_id"`
	Timestamp    int64     `json:"timestamp"`
	Kind         AlertKind `json:"kind"`
	AdapterName  string    `json:"adapter_name"`
	VaultAddress string    `json:"vault_address"`
	PreviousRate string    `json:"previous_rate,omitempty"`
	CurrentRate  string    `json:"current_rate,omitempty"`
	DeviationBPS int64     `json:"deviation_bps"`
	ThresholdBPS int64     `json:"threshold_bps"`
	Detail       string    `json:"detail,omitempty"`
}

// NewAlert creates an alert for the given adapter and kind
func NewAlert(kind AlertKind, adapterName string, vault common.Address) *Alert {
	now := time.Now()
	return &Alert{
		AlertID:      fmt.Sprintf("%s-%s-%d", adapterName, kind.String(), now.UnixNano()),
		Timestamp:    now.Unix(),
		Kind:         kind,
		AdapterName:  adapterName,
		VaultAddress: vault.Hex(),
	}
}

// SetRates records the sampled rates and their deviation
func (a *Alert) SetRates(previous, current *uint256.Int, deviation, threshold money.BPS) {
	if previous != nil {
		a.PreviousRate = previous.Dec()
	}
	if current != nil {
		a.CurrentRate = current.Dec()
	}
	a.DeviationBPS = deviation.Int64()
	a.ThresholdBPS = threshold.Int64()
}

// ToJSON serializes the alert
func (a *Alert) ToJSON() ([]byte, error) {
	return json.Marshal(a)
}

// Attributes returns SNS message attributes for subscription filtering
func (a *Alert) Attributes() map[string]string {
	return map[string]string{
		"kind":    a.Kind.String(),
		"adapter": a.AdapterName,
		"vault":   a.VaultAddress,
	}
}
