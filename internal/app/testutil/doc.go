// Package testutil provides testing utilities shared by the audio-transcriber packages.
//
// It contains two components:
//
// 1. Mock transcriber (mock_transcriber.go):
//   - MockTranscriber: testify mock of api.Transcriber keyed by upload name
//   - Hold/Release to keep a request in flight, Started to observe calls
//
// 2. Fixtures (fixtures.go):
//   - Candidate, MP3, PNG, LargeWAV: in-memory intake candidates
//   - MultipartFile: encodes a file part for HTTP handler tests
package testutil
