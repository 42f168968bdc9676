// Package database persists pipeline runs and release decisions in a
// local SQLite file so history can be listed, compared, and fed back into
// publish plans.
package database
