package metadata

/** Definition for the entry point of a job. Results are sent on out. */
type JobStart func(input any, out chan<- any) error

/** Definition for completion of a job. Receives what the entry point sent. */
type JobOnComplete func(results []any)

/**
 * @brief Describes a job to be run.
 */
type JobTask struct {
	/** @brief Identifies the job in logs. */
	Name string
	/** @brief A function to be invoked when the job starts. Required. */
	OnStart JobStart
	/** @brief A function to be invoked when the job successfully completes. Optional. */
	OnComplete JobOnComplete
	/** @brief A function to be invoked when the job fails. Optional. */
	OnFailure func(err error)
	/** @brief Invoked after OnComplete or OnFailure, whatever the outcome. Optional. */
	OnCompletionCallback func()
	/** @brief Data to be passed to the entry point upon execution. */
	InputParams any
}

// The max number of results a single job can send.
const MAX_JOB_RESULTS int = 512
