package kafka

// Topic definitions for Kafka event streaming
const (
	// Arbitrage job lifecycle
	TopicArbitrageJobs         = "arbitrage.jobs"
	TopicArbitrageJobCompleted = "arbitrage.job_completed"
)
