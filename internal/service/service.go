// Package service contains the services shared by handlers.
//
// It sits between the handler and repository layers. The model API does
// its work through the repository's crud client, so services here are
// process-level concerns: authentication and background jobs.
package service
