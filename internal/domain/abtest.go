package domain

type SplitStrategy string

const (
	SplitSequential SplitStrategy = "sequential"
	SplitRandom     SplitStrategy = "random"
	SplitWeighted   SplitStrategy = "weighted"
)

type VariantMetrics struct {
	Sent      int `json:"sent"`
	Delivered int `json:"delivered"`
	Read      int `json:"read"`
	Failed    int `json:"failed"`
}

type ABTestVariant struct {
	ID       string         `json:"id"`
	Name     string         `json:"name" validate:"required"`
	Template string         `json:"template" validate:"required"`
	Weight   float64        `json:"weight" validate:"min=0,max=100"`
	Metrics  VariantMetrics `json:"metrics"`
}

type ABTestConfig struct {
	Enabled       bool            `json:"enabled"`
	SplitStrategy SplitStrategy   `json:"splitStrategy,omitempty" validate:"omitempty,oneof=sequential random weighted"`
	Variants      []ABTestVariant `json:"variants,omitempty" validate:"dive"`
}

type ABTestWinner struct {
	Winner       ABTestVariant `json:"winner"`
	DeliveryRate float64       `json:"deliveryRate"`
	ReadRate     float64       `json:"readRate"`
	Confidence   float64       `json:"confidence"`
	Reason       string        `json:"reason"`
}
