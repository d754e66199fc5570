// Package lib holds modules that do not fit strictly into other layers.
//
// Currently that is background job processing (job), backed by Redis
// through Asynq.
package lib
