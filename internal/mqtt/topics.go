package mqtt

// Topics used by the warehouse message channel
const (
	// TopicRobotStatus carries full status snapshots published by robots
	TopicRobotStatus = "warehouse/robots/status"

	// TopicRobotPosition carries position-only updates
	TopicRobotPosition = "warehouse/robots/position"

	// TopicTasks carries task intake and cancel messages for robots
	TopicTasks = "warehouse/tasks"

	// TopicTaskCompleted carries task completion notices from robots
	TopicTaskCompleted = "warehouse/tasks/completed"
)
