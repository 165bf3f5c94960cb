package workflow

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"bookforge/internal/language"
	"bookforge/internal/queue"
)

// BookSpec describes an audiobook production the CLI wizard collected. The
// builder turns it into a master job plus a chain of children; downstream
// children whose inputs depend on upstream output are created as
// placeholders and bound as results arrive.
type BookSpec struct {
	Title          string
	InputPath      string
	Voice          string
	Language       string
	TargetLanguage string
	Cleanup        bool
	Denoise        bool
	CoverImage     string
	OutputDir      string
	Workers        int
}

// Validate checks the spec before any job is created.
func (s BookSpec) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("workflow title is required")
	}
	if strings.TrimSpace(s.InputPath) == "" {
		return fmt.Errorf("input path is required")
	}
	if s.TargetLanguage != "" && language.Normalize(s.TargetLanguage) == "" {
		return fmt.Errorf("unrecognized target language %q", s.TargetLanguage)
	}
	return nil
}

// CreateWorkflow builds the workflow graph for a book and enqueues it. The
// master is created first, then children in pipeline order; the scheduler is
// nudged once at the end.
func (m *Manager) CreateWorkflow(spec BookSpec) (queue.Job, error) {
	if err := spec.Validate(); err != nil {
		return queue.Job{}, err
	}

	workflowID := uuid.NewString()
	master, err := m.store.Add(queue.Job{
		Type:       queue.TypeWorkflowContainer,
		Status:     queue.StatusPending,
		Title:      spec.Title,
		WorkflowID: workflowID,
	})
	if err != nil {
		return queue.Job{}, err
	}

	base := queue.Job{
		Status:      queue.StatusPending,
		WorkflowID:  workflowID,
		ParentJobID: master.ID,
	}

	// Tracks the job whose output feeds the next stage; empty means the next
	// stage reads the raw input directly.
	upstreamID := ""

	if spec.Cleanup {
		cleanup := base
		cleanup.Type = queue.TypeCleanup
		cleanup.Title = spec.Title + " (cleanup)"
		cleanup.InputRef = spec.InputPath
		added, addErr := m.store.Add(cleanup)
		if addErr != nil {
			m.store.Remove(master.ID)
			return queue.Job{}, addErr
		}
		upstreamID = added.ID
	}

	if spec.TargetLanguage != "" {
		target := language.Normalize(spec.TargetLanguage)
		translation := base
		translation.Type = queue.TypeTranslation
		translation.Title = fmt.Sprintf("%s (%s translation)", spec.Title, language.DisplayName(target))
		translation.Config.TargetLanguage = target
		if upstreamID == "" {
			translation.InputRef = spec.InputPath
		} else {
			translation.Placeholder = &queue.PlaceholderMarker{
				Role:            queue.RoleTranslationSource,
				AwaitedUpstream: upstreamID,
			}
		}
		added, addErr := m.store.Add(translation)
		if addErr != nil {
			m.store.Remove(master.ID)
			return queue.Job{}, addErr
		}
		upstreamID = added.ID
	}

	synthesis := base
	synthesis.Type = queue.TypeSynthesis
	synthesis.Title = spec.Title + " (narration)"
	synthesis.Config.Voice = spec.Voice
	synthesis.Config.Workers = spec.Workers
	synthesis.Config.Language = spec.Language
	if spec.TargetLanguage != "" {
		synthesis.Config.Language = language.Normalize(spec.TargetLanguage)
	}
	if upstreamID == "" {
		synthesis.InputRef = spec.InputPath
	} else {
		synthesis.Placeholder = &queue.PlaceholderMarker{
			Role:            queue.RoleSynthesisSource,
			AwaitedUpstream: upstreamID,
		}
	}
	addedSynthesis, err := m.store.Add(synthesis)
	if err != nil {
		m.store.Remove(master.ID)
		return queue.Job{}, err
	}

	assembly := base
	assembly.Type = queue.TypeAudioAssembly
	assembly.Title = spec.Title
	assembly.Config.OutputDir = spec.OutputDir
	assembly.Config.Denoise = spec.Denoise
	assembly.Placeholder = &queue.PlaceholderMarker{
		Role:            queue.RoleAssemblySource,
		AwaitedUpstream: addedSynthesis.ID,
	}
	addedAssembly, err := m.store.Add(assembly)
	if err != nil {
		m.store.Remove(master.ID)
		return queue.Job{}, err
	}

	if spec.CoverImage != "" {
		video := base
		video.Type = queue.TypeVideoAssembly
		video.Title = spec.Title + " (video)"
		video.Config.ImagePath = spec.CoverImage
		video.Config.OutputDir = spec.OutputDir
		video.Placeholder = &queue.PlaceholderMarker{
			Role:            queue.RoleAssemblySource,
			AwaitedUpstream: addedAssembly.ID,
		}
		if _, addErr := m.store.Add(video); addErr != nil {
			m.store.Remove(master.ID)
			return queue.Job{}, addErr
		}
	}

	m.ProcessNext()
	return master, nil
}
