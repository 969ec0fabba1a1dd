// Package services holds the error taxonomy and context plumbing shared by
// the provider clients under services/ and the pipeline stages that call
// them. Degradable failures are tagged ErrDegraded; everything else that
// escapes a stage is treated as fatal for the job.
package services
