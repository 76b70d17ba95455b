package bridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/iayvob/palboti-backend/internal/model"
	"github.com/iayvob/palboti-backend/internal/mqtt"
)

type fakeChannel struct {
	handlers map[string][]mqtt.Handler
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: make(map[string][]mqtt.Handler)}
}

func (f *fakeChannel) Subscribe(topic string, handler mqtt.Handler) (*mqtt.Registration, error) {
	f.handlers[topic] = append(f.handlers[topic], handler)
	return &mqtt.Registration{}, nil
}

func (f *fakeChannel) deliver(t *testing.T, topic string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}
	for _, h := range f.handlers[topic] {
		h(topic, data)
	}
}

func (f *fakeChannel) deliverRaw(topic string, payload []byte) {
	for _, h := range f.handlers[topic] {
		h(topic, payload)
	}
}

type memStatusStore struct {
	robots    map[string]*model.Robot
	audits    []*model.StatusAudit
	tasks     map[int64]*model.Task
	applyErr  error
	started   []int64
	completed []int64
}

func newMemStatusStore() *memStatusStore {
	return &memStatusStore{
		robots: make(map[string]*model.Robot),
		tasks:  make(map[int64]*model.Task),
	}
}

func (s *memStatusStore) ApplyStatus(_ context.Context, robotID string, fields map[string]interface{}) (*model.Robot, error) {
	if s.applyErr != nil {
		return nil, s.applyErr
	}
	robot, ok := s.robots[robotID]
	if !ok {
		robot = &model.Robot{ID: robotID, Status: model.RobotStateIdle, Battery: 100}
		s.robots[robotID] = robot
	}
	mergeRobotFields(robot, fields)
	copied := *robot
	return &copied, nil
}

func (s *memStatusStore) AppendAudit(_ context.Context, audit *model.StatusAudit) error {
	s.audits = append(s.audits, audit)
	return nil
}

func (s *memStatusStore) StartTask(_ context.Context, taskID int64, robotID string) error {
	s.started = append(s.started, taskID)
	if task, ok := s.tasks[taskID]; ok && task.Status == model.TaskStatusPending {
		task.Status = model.TaskStatusInProgress
		task.RobotID = robotID
	}
	return nil
}

func (s *memStatusStore) CompleteTask(_ context.Context, taskID int64, completedAt time.Time) error {
	s.completed = append(s.completed, taskID)
	if task, ok := s.tasks[taskID]; ok && model.ValidStatusTransition(task.Status, model.TaskStatusCompleted) {
		task.Status = model.TaskStatusCompleted
		task.CompletedAt = &completedAt
	}
	return nil
}

type memCache struct {
	robots map[string]*model.Robot
}

func (c *memCache) SetRobotStatus(_ context.Context, robot *model.Robot) error {
	if c.robots == nil {
		c.robots = make(map[string]*model.Robot)
	}
	c.robots[robot.ID] = robot
	return nil
}

type recordingBroadcaster struct {
	robots []*model.Robot
}

func (b *recordingBroadcaster) BroadcastRobotStatus(robot *model.Robot) {
	b.robots = append(b.robots, robot)
}

func newTestBridge(t *testing.T) (*Bridge, *fakeChannel, *memStatusStore, *memCache, *recordingBroadcaster) {
	t.Helper()
	channel := newFakeChannel()
	store := newMemStatusStore()
	cache := &memCache{}
	broadcaster := &recordingBroadcaster{}
	b := New(Config{
		Channel:     channel,
		Store:       store,
		Cache:       cache,
		Broadcaster: broadcaster,
	})
	if err := b.Start(); err != nil {
		t.Fatalf("Failed to start bridge: %v", err)
	}
	return b, channel, store, cache, broadcaster
}

func TestStart_SubscribesAllTopics(t *testing.T) {
	_, channel, _, _, _ := newTestBridge(t)
	for _, topic := range []string{mqtt.TopicRobotStatus, mqtt.TopicRobotPosition, mqtt.TopicTaskCompleted} {
		if len(channel.handlers[topic]) != 1 {
			t.Errorf("Expected one handler on %s, got %d", topic, len(channel.handlers[topic]))
		}
	}
}

func TestStatusMessage_PersistedCachedBroadcast(t *testing.T) {
	_, channel, store, cache, broadcaster := newTestBridge(t)

	load := "P-001"
	taskID := int64(7)
	channel.deliver(t, mqtt.TopicRobotStatus, mqtt.StatusMessage{
		ID:            "PB-001",
		Name:          "PalBot 1",
		Status:        model.RobotStateMoving,
		Battery:       87.5,
		Location:      "B2",
		Load:          &load,
		LastUpdated:   time.Now(),
		CurrentTaskID: &taskID,
	})

	robot := store.robots["PB-001"]
	if robot == nil {
		t.Fatal("Expected robot persisted")
	}
	if robot.Status != model.RobotStateMoving || robot.Battery != 87.5 || robot.Location != "B2" {
		t.Errorf("Unexpected merged robot: %+v", robot)
	}
	if robot.Load == nil || *robot.Load != "P-001" {
		t.Errorf("Expected load P-001, got %v", robot.Load)
	}

	if len(store.audits) != 1 || store.audits[0].RobotID != "PB-001" {
		t.Errorf("Expected one audit row for PB-001, got %+v", store.audits)
	}
	if cache.robots["PB-001"] == nil {
		t.Error("Expected cache refreshed")
	}
	if len(broadcaster.robots) != 1 || broadcaster.robots[0].ID != "PB-001" {
		t.Errorf("Expected one broadcast, got %+v", broadcaster.robots)
	}
	if len(store.started) != 1 || store.started[0] != 7 {
		t.Errorf("Expected task 7 marked in progress, got %v", store.started)
	}
}

func TestStatusMessage_PartialMergePreservesOmittedFields(t *testing.T) {
	_, channel, store, _, _ := newTestBridge(t)

	load := "P-001"
	store.robots["PB-001"] = &model.Robot{
		ID:       "PB-001",
		Name:     "PalBot 1",
		Status:   model.RobotStateLoading,
		Battery:  60,
		Location: "A1",
		Load:     &load,
	}

	// Only battery in the payload; everything else must survive
	channel.deliverRaw(mqtt.TopicRobotStatus, []byte(`{"id":"PB-001","battery":59.5}`))

	robot := store.robots["PB-001"]
	if robot.Battery != 59.5 {
		t.Errorf("Expected battery updated to 59.5, got %f", robot.Battery)
	}
	if robot.Status != model.RobotStateLoading || robot.Location != "A1" {
		t.Errorf("Omitted fields were overwritten: %+v", robot)
	}
	if robot.Load == nil || *robot.Load != "P-001" {
		t.Errorf("Expected load preserved, got %v", robot.Load)
	}
}

func TestStatusMessage_ExplicitNullClearsLoad(t *testing.T) {
	_, channel, store, _, _ := newTestBridge(t)

	load := "P-001"
	store.robots["PB-001"] = &model.Robot{ID: "PB-001", Load: &load}

	channel.deliverRaw(mqtt.TopicRobotStatus, []byte(`{"id":"PB-001","load":null}`))

	if store.robots["PB-001"].Load != nil {
		t.Error("Expected explicit null to clear the load")
	}
}

func TestStatusMessage_MalformedDropped(t *testing.T) {
	_, channel, store, _, broadcaster := newTestBridge(t)

	channel.deliverRaw(mqtt.TopicRobotStatus, []byte(`{not json`))
	channel.deliverRaw(mqtt.TopicRobotStatus, []byte(`{"battery":50}`)) // no robot id

	if len(store.robots) != 0 || len(store.audits) != 0 || len(broadcaster.robots) != 0 {
		t.Error("Malformed messages must not reach any sink")
	}
}

func TestPositionMessage_UpdatesLocationOnly(t *testing.T) {
	_, channel, store, _, broadcaster := newTestBridge(t)

	store.robots["PB-001"] = &model.Robot{
		ID:      "PB-001",
		Status:  model.RobotStateMoving,
		Battery: 80,
	}

	channel.deliver(t, mqtt.TopicRobotPosition, mqtt.PositionMessage{
		RobotID:  "PB-001",
		Location: "C3",
	})

	robot := store.robots["PB-001"]
	if robot.Location != "C3" {
		t.Errorf("Expected location C3, got %s", robot.Location)
	}
	if robot.Status != model.RobotStateMoving || robot.Battery != 80 {
		t.Errorf("Position update changed unrelated fields: %+v", robot)
	}
	if len(broadcaster.robots) != 1 {
		t.Errorf("Expected position update broadcast, got %d", len(broadcaster.robots))
	}
}

func TestPositionMessage_AdvancesLastUpdated(t *testing.T) {
	_, channel, store, _, _ := newTestBridge(t)

	t0 := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	store.robots["PB-001"] = &model.Robot{
		ID:          "PB-001",
		Status:      model.RobotStateMoving,
		Battery:     80,
		Location:    "A1",
		LastUpdated: t0,
	}

	channel.deliver(t, mqtt.TopicRobotPosition, mqtt.PositionMessage{
		RobotID:  "PB-001",
		Location: "B2",
	})

	robot := store.robots["PB-001"]
	if robot.Location != "B2" {
		t.Fatalf("Expected location B2, got %s", robot.Location)
	}
	if !robot.LastUpdated.After(t0) {
		t.Errorf("Expected lastUpdated to advance on a position merge, still %v", robot.LastUpdated)
	}
}

func TestCompletionMessage_MarksTaskCompleted(t *testing.T) {
	_, channel, store, _, _ := newTestBridge(t)

	store.tasks[3] = &model.Task{ID: 3, Status: model.TaskStatusInProgress}

	completedAt := time.Now()
	channel.deliver(t, mqtt.TopicTaskCompleted, mqtt.CompletionMessage{
		TaskID:      3,
		CompletedAt: completedAt,
		Status:      "completed",
	})

	if store.tasks[3].Status != model.TaskStatusCompleted {
		t.Errorf("Expected task completed, got %s", store.tasks[3].Status)
	}
	if store.tasks[3].CompletedAt == nil {
		t.Error("Expected completion time recorded")
	}
}

func TestCompletionMessage_MalformedDropped(t *testing.T) {
	_, channel, store, _, _ := newTestBridge(t)

	channel.deliverRaw(mqtt.TopicTaskCompleted, []byte(`garbage`))
	channel.deliverRaw(mqtt.TopicTaskCompleted, []byte(`{}`)) // no task id

	if len(store.completed) != 0 {
		t.Error("Malformed completion messages must be dropped")
	}
}

func TestPersistFailure_LiveViewStillUpdated(t *testing.T) {
	_, channel, store, cache, broadcaster := newTestBridge(t)
	store.applyErr = context.DeadlineExceeded

	channel.deliverRaw(mqtt.TopicRobotStatus, []byte(`{"id":"PB-001","battery":50}`))

	if len(broadcaster.robots) != 1 {
		t.Fatalf("Expected one broadcast despite the failed write, got %d", len(broadcaster.robots))
	}
	got := broadcaster.robots[0]
	if got.ID != "PB-001" || got.Battery != 50 {
		t.Errorf("Broadcast should carry the message fields, got %+v", got)
	}
	if len(cache.robots) != 1 {
		t.Error("Cache should still hold the latest message")
	}
}

func TestBroadcastsFollowMergeOrder(t *testing.T) {
	_, channel, _, _, broadcaster := newTestBridge(t)

	channel.deliverRaw(mqtt.TopicRobotStatus, []byte(`{"id":"PB-001","status":"moving","battery":90}`))
	channel.deliverRaw(mqtt.TopicRobotStatus, []byte(`{"id":"PB-001","status":"loading","battery":89}`))

	if len(broadcaster.robots) != 2 {
		t.Fatalf("Expected two broadcasts, got %d", len(broadcaster.robots))
	}
	if broadcaster.robots[0].Status != model.RobotStateMoving ||
		broadcaster.robots[1].Status != model.RobotStateLoading {
		t.Error("Broadcasts must reflect each merged snapshot in order")
	}
}
