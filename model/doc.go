// Package model defines the provider-agnostic abstraction over chat style
// language models used by the generation layer.
//
// Core goals:
//   - Unify streaming and non-streaming generation behind a single interface
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (model/openai, model/anthropic) implement Model so higher layers
// remain decoupled from vendor SDKs. The openai provider also serves local
// OpenAI-compatible servers such as Ollama through a custom base URL.
package model
