package mocks

import "github.com/custodia-labs/annotator-core/internal/core/ports/driven"

var (
	_ driven.JobStore        = (*MockJobStore)(nil)
	_ driven.AnnotationStore = (*MockAnnotationStore)(nil)
	_ driven.ProgressStore   = (*MockProgressStore)(nil)
	_ driven.TaskQueue       = (*MockTaskQueue)(nil)
	_ driven.DistributedLock = (*MockDistributedLock)(nil)
)
