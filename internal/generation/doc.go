// Package generation defines the boundary between the application and the
// external LLM service that writes book chapters. The Generator interface
// hides the details of the provider (Gemini) so the chapter work can be
// tested without network access.
package generation
