package insight

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iayvob/palboti-backend/internal/model"
)

// FleetSnapshot is the aggregate the worker hands to a Generator. It is
// collected once per run so every rule sees the same numbers.
type FleetSnapshot struct {
	Robots         []model.Robot
	PendingTasks   int64
	CompletedToday int64
	ZoneOccupancy  map[string]ZoneOccupancy
	ProductsStored int64
}

// ZoneOccupancy is the slot usage of one zone
type ZoneOccupancy struct {
	Used     int
	Capacity int
}

// Draft is an insight a Generator wants recorded. The worker fills in
// persistence details.
type Draft struct {
	Kind     string
	Severity string
	Title    string
	Body     string
	Metadata interface{}
}

// Generator produces insight drafts from a fleet snapshot. The rule-based
// implementation below is the default; an LLM-backed one would satisfy the
// same interface.
type Generator interface {
	Generate(ctx context.Context, snapshot FleetSnapshot) ([]Draft, error)
}

// Rule thresholds
const (
	lowBatteryInsight    = 20.0
	backlogThreshold     = 10
	occupancyWarnPercent = 90
)

// RuleBased derives insights from fixed operational thresholds
type RuleBased struct{}

// Generate applies each rule against the snapshot
func (RuleBased) Generate(_ context.Context, snapshot FleetSnapshot) ([]Draft, error) {
	var drafts []Draft

	for _, robot := range snapshot.Robots {
		if robot.Battery < lowBatteryInsight && robot.Status != model.RobotStateCharging {
			drafts = append(drafts, Draft{
				Kind:     "robot-battery",
				Severity: model.InsightSeverityWarning,
				Title:    fmt.Sprintf("Robot %s battery low", robot.ID),
				Body: fmt.Sprintf("Robot %s is at %.0f%% battery and not charging. Consider scheduling a charging task.",
					robot.ID, robot.Battery),
				Metadata: map[string]interface{}{
					"robotId": robot.ID,
					"battery": robot.Battery,
					"status":  robot.Status,
				},
			})
		}
	}

	if snapshot.PendingTasks > backlogThreshold {
		drafts = append(drafts, Draft{
			Kind:     "task-backlog",
			Severity: model.InsightSeverityWarning,
			Title:    "Task backlog building up",
			Body: fmt.Sprintf("%d tasks are waiting for a robot. Throughput today: %d completed.",
				snapshot.PendingTasks, snapshot.CompletedToday),
			Metadata: map[string]interface{}{
				"pending":        snapshot.PendingTasks,
				"completedToday": snapshot.CompletedToday,
			},
		})
	}

	for zoneID, occ := range snapshot.ZoneOccupancy {
		if occ.Capacity == 0 {
			continue
		}
		percent := occ.Used * 100 / occ.Capacity
		if percent >= occupancyWarnPercent {
			drafts = append(drafts, Draft{
				Kind:     "zone-capacity",
				Severity: model.InsightSeverityWarning,
				Title:    fmt.Sprintf("Zone %s almost full", zoneID),
				Body: fmt.Sprintf("Zone %s is at %d%% capacity (%d of %d slots used).",
					zoneID, percent, occ.Used, occ.Capacity),
				Metadata: map[string]interface{}{
					"zoneId":   zoneID,
					"used":     occ.Used,
					"capacity": occ.Capacity,
				},
			})
		}
	}

	return drafts, nil
}

// marshalMetadata turns a draft's metadata into a JSON column value
func marshalMetadata(metadata interface{}) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal insight metadata: %w", err)
	}
	return data, nil
}
