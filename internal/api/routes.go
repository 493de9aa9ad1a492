package api

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts the chapter and job endpoints on r.
func RegisterRoutes(r chi.Router, chapters *ChapterHandler, jobs *JobHandler) {
	r.Post("/chapters", chapters.CreateChapter)

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", jobs.ListJobs)
		r.Delete("/", jobs.CleanupJobs)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", jobs.GetJob)
			r.Post("/pause", jobs.PauseJob)
			r.Post("/resume", jobs.ResumeJob)
			r.Post("/cancel", jobs.CancelJob)
		})
	})
}
