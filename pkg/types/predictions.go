package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// PredictionKind names a model-backed prediction variant. Each kind has its
// own typed representation and its own cache slot in the shared state store.
type PredictionKind string

const (
	KindLoad             PredictionKind = "load"
	KindFault            PredictionKind = "fault"
	KindTraffic          PredictionKind = "traffic"
	KindMicroTraffic     PredictionKind = "micro-traffic"
	KindBatteryRebalance PredictionKind = "battery-rebalance"
	KindStockOrder       PredictionKind = "stock-order"
	KindStaffDiversion   PredictionKind = "staff-diversion"
	KindTieUpStorage     PredictionKind = "tieup-storage"
	KindCustomerArrival  PredictionKind = "customer-arrival"
	KindBatteryDemand    PredictionKind = "battery-demand"
	KindQueueSurge       PredictionKind = "queue"
	KindWaitSurge        PredictionKind = "wait"
	KindMaintenance      PredictionKind = "action"
	KindRecommender      PredictionKind = "recommender"
)

// LoadForecast predicts near-term utilization of a station, in [0,1].
type LoadForecast struct {
	StationID     string  `json:"stationId"`
	PredictedLoad float64 `json:"predictedLoad"`
	Confidence    float64 `json:"confidence"`
	Fallback      bool    `json:"fallback,omitempty"`
	Timestamp     int64   `json:"timestamp"`
}

// FaultPrediction predicts the probability of a station fault, in [0,1].
type FaultPrediction struct {
	StationID        string    `json:"stationId"`
	FaultProbability float64   `json:"faultProbability"`
	RiskLevel        RiskLevel `json:"riskLevel"`
	Confidence       float64   `json:"confidence"`
	Fallback         bool      `json:"fallback,omitempty"`
	Timestamp        int64     `json:"timestamp"`
}

// TrafficForecast predicts road congestion around a region, in [0,1].
type TrafficForecast struct {
	Region          string  `json:"region"`
	CongestionLevel float64 `json:"congestionLevel"`
	Confidence      float64 `json:"confidence"`
	Fallback        bool    `json:"fallback,omitempty"`
	Timestamp       int64   `json:"timestamp"`
}

// MicroTrafficForecast predicts inbound vehicle flow at one station.
type MicroTrafficForecast struct {
	StationID   string  `json:"stationId"`
	InboundFlow float64 `json:"inboundFlow"`
	Confidence  float64 `json:"confidence"`
	Fallback    bool    `json:"fallback,omitempty"`
	Timestamp   int64   `json:"timestamp"`
}

// BatteryRebalancePlan suggests battery transfers into or out of a station.
type BatteryRebalancePlan struct {
	StationID    string  `json:"stationId"`
	BatteriesIn  int     `json:"batteriesIn"`
	BatteriesOut int     `json:"batteriesOut"`
	Confidence   float64 `json:"confidence"`
	Fallback     bool    `json:"fallback,omitempty"`
	Timestamp    int64   `json:"timestamp"`
}

// StockOrderSuggestion suggests a battery stock order quantity.
type StockOrderSuggestion struct {
	StationID  string  `json:"stationId"`
	OrderQty   int     `json:"orderQty"`
	Confidence float64 `json:"confidence"`
	Fallback   bool    `json:"fallback,omitempty"`
	Timestamp  int64   `json:"timestamp"`
}

// StaffDiversionPlan suggests moving staff between stations.
type StaffDiversionPlan struct {
	StationID  string  `json:"stationId"`
	StaffDelta int     `json:"staffDelta"`
	Confidence float64 `json:"confidence"`
	Fallback   bool    `json:"fallback,omitempty"`
	Timestamp  int64   `json:"timestamp"`
}

// TieUpStoragePlan suggests grid-tied storage dispatch for a station.
type TieUpStoragePlan struct {
	StationID  string  `json:"stationId"`
	StorageKwh float64 `json:"storageKwh"`
	Confidence float64 `json:"confidence"`
	Fallback   bool    `json:"fallback,omitempty"`
	Timestamp  int64   `json:"timestamp"`
}

// CustomerArrivalForecast predicts arrivals per hour at one station.
type CustomerArrivalForecast struct {
	StationID       string  `json:"stationId"`
	ArrivalsPerHour float64 `json:"arrivalsPerHour"`
	Confidence      float64 `json:"confidence"`
	Fallback        bool    `json:"fallback,omitempty"`
	Timestamp       int64   `json:"timestamp"`
}

// BatteryDemandForecast predicts battery swaps per hour at one station.
type BatteryDemandForecast struct {
	StationID    string  `json:"stationId"`
	SwapsPerHour float64 `json:"swapsPerHour"`
	Confidence   float64 `json:"confidence"`
	Fallback     bool    `json:"fallback,omitempty"`
	Timestamp    int64   `json:"timestamp"`
}

// QueueSurgeForecast predicts near-term queue length at one station.
type QueueSurgeForecast struct {
	StationID      string  `json:"stationId"`
	PredictedQueue float64 `json:"predictedQueue"`
	Confidence     float64 `json:"confidence"`
	Fallback       bool    `json:"fallback,omitempty"`
	Timestamp      int64   `json:"timestamp"`
}

// WaitSurgeForecast predicts near-term wait time in minutes at one station.
type WaitSurgeForecast struct {
	StationID     string  `json:"stationId"`
	PredictedWait float64 `json:"predictedWait"`
	Confidence    float64 `json:"confidence"`
	Fallback      bool    `json:"fallback,omitempty"`
	Timestamp     int64   `json:"timestamp"`
}

// MaintenanceAction flags a station for a near-term maintenance action.
type MaintenanceAction struct {
	StationID      string  `json:"stationId"`
	ActionRequired bool    `json:"actionRequired"`
	Action         string  `json:"action,omitempty"`
	Confidence     float64 `json:"confidence"`
	Fallback       bool    `json:"fallback,omitempty"`
	Timestamp      int64   `json:"timestamp"`
}

// RecommenderSignal is the external recommender's own confidence in the
// station being a good pick.
type RecommenderSignal struct {
	StationID  string  `json:"stationId"`
	Confidence float64 `json:"confidence"`
	Fallback   bool    `json:"fallback,omitempty"`
	Timestamp  int64   `json:"timestamp"`
}

// OperationalPredictions bundles the auxiliary model outputs attached to a
// ranked station. Nil members were unavailable and are omitted from JSON.
type OperationalPredictions struct {
	Traffic          *TrafficForecast         `json:"traffic,omitempty"`
	MicroTraffic     *MicroTrafficForecast    `json:"microTraffic,omitempty"`
	BatteryRebalance *BatteryRebalancePlan    `json:"batteryRebalance,omitempty"`
	StockOrder       *StockOrderSuggestion    `json:"stockOrder,omitempty"`
	StaffDiversion   *StaffDiversionPlan      `json:"staffDiversion,omitempty"`
	TieUpStorage     *TieUpStoragePlan        `json:"tieUpStorage,omitempty"`
	CustomerArrival  *CustomerArrivalForecast `json:"customerArrival,omitempty"`
	BatteryDemand    *BatteryDemandForecast   `json:"batteryDemand,omitempty"`
}

// Empty reports whether no model produced a usable result.
func (p *OperationalPredictions) Empty() bool {
	return p == nil || (p.Traffic == nil && p.MicroTraffic == nil &&
		p.BatteryRebalance == nil && p.StockOrder == nil &&
		p.StaffDiversion == nil && p.TieUpStorage == nil &&
		p.CustomerArrival == nil && p.BatteryDemand == nil)
}

// ChargerTypes is a charger class list stored as a JSON column.
type ChargerTypes []ChargerType

// Value implements driver.Valuer.
func (c ChargerTypes) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (c *ChargerTypes) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = nil
		return nil
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("charger_types: unsupported source type %T", src)
	}
}
