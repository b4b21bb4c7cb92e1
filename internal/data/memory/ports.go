package memory

import "github.com/target/prospector/internal/core"

var (
	_ core.AudienceRepository   = (*AudienceRepo)(nil)
	_ core.DispatchRepository   = (*Store)(nil)
	_ core.RunRepository        = (*RunRepo)(nil)
	_ core.ProspectRepository   = (*ProspectRepo)(nil)
	_ core.JobQueue             = (*Queue)(nil)
	_ core.ProjectionRepository = (*Projection)(nil)
	_ core.ReaperRepository     = (*Reaper)(nil)
	_ core.CacheRepository      = (*Cache)(nil)
)
