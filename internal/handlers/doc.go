// Package handlers provides HTTP request handlers for the flicks backend API.
//
// It includes handlers for:
//   - Media upload and asynchronous ingest
//   - Asset descriptors, galleries, and canonical content delivery
//   - Primary-flag designation and display metadata
//   - View session start/end and per-asset analytics
//   - Health checks and version information
package handlers
