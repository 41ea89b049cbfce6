package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kendallhq/kendall/internal/assistant_service/adapters/notifier"
	"github.com/kendallhq/kendall/internal/assistant_service/domain"
	"github.com/kendallhq/kendall/internal/assistant_service/phone"
	"github.com/kendallhq/kendall/internal/assistant_service/prompt"
	"github.com/kendallhq/kendall/internal/assistant_service/repository"
	"github.com/kendallhq/kendall/internal/assistant_service/voice"
)

// AgentAPI is the slice of the agent platform the orchestrator needs.
type AgentAPI interface {
	CreateAssistant(ctx context.Context, profile domain.AgentProfile) (string, error)
	UpdateAssistant(ctx context.Context, agentID string, profile domain.AgentProfile) error
}

// PhoneProvisioner purchases a number and binds it to an agent.
type PhoneProvisioner interface {
	PurchaseAndBind(ctx context.Context, agentID, label string) (*domain.PhoneBinding, error)
}

// EnrichmentAwaiter waits for derived file content to land on a record.
type EnrichmentAwaiter interface {
	Await(ctx context.Context, recordID uuid.UUID) (string, bool, error)
}

// WelcomeNotifier sends the owner their welcome email.
type WelcomeNotifier interface {
	SendWelcome(ctx context.Context, details notifier.WelcomeDetails) error
}

// SMSSender sends the welcome text. Optional; may be nil.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// EventPublisher publishes lifecycle events. Optional; may be nil when the
// broker is unavailable at startup.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// ProvisionRequest is the canonical internal provisioning input. Both inbound
// request schemas are normalized into this shape at the transport boundary;
// nothing below the handler branches on which schema arrived.
type ProvisionRequest struct {
	OwnerName   string
	OwnerEmail  string
	OwnerMobile string

	AssistantName string
	Nickname      string

	PersonalityTraits []string
	CustomPersonality string
	Boundaries        string
	UseCase           string
	ContextRules      string

	ForwardingEnabled bool
	VoiceChoice       string
	AttachedFileURLs  []string
}

// ProvisionResult is returned on success.
type ProvisionResult struct {
	RecordID    uuid.UUID
	AgentID     string
	PhoneNumber string
	// PhoneNumberFinal is false when PhoneNumber is the non-final placeholder
	// and must not be presented as a dialable number.
	PhoneNumberFinal bool
}

// ProvisioningAppService sequences record creation, voice validation, agent
// creation, phone provisioning, enrichment, and notification. Every exit path
// after record creation attempts a best-effort status write; a failure of
// that compensating write is only logged so it never masks the original
// error.
type ProvisioningAppService struct {
	records        repository.RecordRepository
	voiceValidator voice.Validator
	agents         AgentAPI
	phones         PhoneProvisioner
	enricher       EnrichmentAwaiter
	emailNotifier  WelcomeNotifier
	smsSender      SMSSender
	events         EventPublisher
	logger         *slog.Logger
	appBaseURL     string
}

func NewProvisioningAppService(
	records repository.RecordRepository,
	voiceValidator voice.Validator,
	agents AgentAPI,
	phones PhoneProvisioner,
	enricher EnrichmentAwaiter,
	emailNotifier WelcomeNotifier,
	smsSender SMSSender,
	events EventPublisher,
	logger *slog.Logger,
	appBaseURL string,
) *ProvisioningAppService {
	return &ProvisioningAppService{
		records:        records,
		voiceValidator: voiceValidator,
		agents:         agents,
		phones:         phones,
		enricher:       enricher,
		emailNotifier:  emailNotifier,
		smsSender:      smsSender,
		events:         events,
		logger:         logger.With("service", "provisioning_app"),
		appBaseURL:     appBaseURL,
	}
}

// EditLink returns the record-scoped setup deep link.
func (s *ProvisioningAppService) EditLink(recordID uuid.UUID) string {
	return fmt.Sprintf("%s/personal-setup?edit=%s", s.appBaseURL, recordID)
}

// ChatLink returns the record-scoped chat deep link.
func (s *ProvisioningAppService) ChatLink(recordID uuid.UUID) string {
	return fmt.Sprintf("%s/chat?recordId=%s", s.appBaseURL, recordID)
}

// Provision runs the full orchestration for one signup.
func (s *ProvisioningAppService) Provision(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error) {
	start := time.Now()
	result, err := s.provision(ctx, req)
	outcome := "active"
	if err != nil {
		if domain.IsClientError(err) {
			outcome = "client_error"
		} else {
			outcome = "dependency_error"
		}
	}
	provisioningRunsCounter.WithLabelValues(outcome).Inc()
	provisioningDurationHist.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return result, err
}

func (s *ProvisioningAppService) provision(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error) {
	// 1. Persist the pending record. Failing here aborts before any external
	// side effect: there is nothing to compensate yet.
	rec := &domain.AssistantRecord{
		ID:                uuid.New(),
		OwnerName:         req.OwnerName,
		OwnerEmail:        req.OwnerEmail,
		OwnerMobile:       req.OwnerMobile,
		AssistantName:     req.AssistantName,
		Nickname:          req.Nickname,
		PersonalityTraits: req.PersonalityTraits,
		CustomPersonality: req.CustomPersonality,
		Boundaries:        req.Boundaries,
		UseCase:           req.UseCase,
		ContextRules:      req.ContextRules,
		ForwardingEnabled: req.ForwardingEnabled,
		VoiceChoice:       req.VoiceChoice,
		AttachedFileURLs:  req.AttachedFileURLs,
		Status:            domain.StatusProcessing,
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, domain.NewDependencyError("record store", err)
	}
	logger := s.logger.With("record_id", rec.ID)

	// 2. Voice validation. An explicit invalid result is the one
	// caller-correctable branch; an unreachable validator only warns, since
	// "voice is invalid" and "cannot determine validity" are different
	// failure modes.
	selection, err := s.validateVoice(ctx, logger, rec, req.VoiceChoice)
	if err != nil {
		return nil, err
	}

	// 3. Create the agent with the knowledge block empty; enrichment is not
	// available yet.
	profile := prompt.Build(rec, "")
	profile.Voice = selection
	agentID, err := s.agents.CreateAssistant(ctx, profile)
	if err != nil {
		s.markError(ctx, logger, rec.ID, fmt.Sprintf("agent creation failed: %v", err), nil)
		return nil, domain.NewDependencyError("agent platform", err)
	}
	logger = logger.With("agent_id", agentID)
	logger.InfoContext(ctx, "Agent created")

	// 4. Purchase and bind the phone number. On total failure the error
	// write carries the agent id so the agent is not orphaned from the
	// record.
	binding, err := s.phones.PurchaseAndBind(ctx, agentID, profile.Name)
	if err != nil {
		s.markError(ctx, logger, rec.ID, fmt.Sprintf("phone provisioning failed: %v", err), map[string]any{
			repository.FieldAgentID: agentID,
		})
		s.publishEvent(ctx, domain.SubjectProvisioningFailed, rec.ID, agentID, "", domain.StatusError, err.Error())
		return nil, domain.NewDependencyError("phone provisioning", err)
	}
	logger.InfoContext(ctx, "Phone bound", "number", binding.PhoneNumber, "provider_id", binding.ProviderID)

	if err := s.records.Update(ctx, rec.ID, map[string]any{
		repository.FieldAgentID:                 agentID,
		repository.FieldPhoneNumber:             binding.PhoneNumber,
		repository.FieldPhoneProviderID:         binding.ProviderID,
		repository.FieldPhoneProviderAccountRef: binding.ProviderAccountRef,
		repository.FieldStatus:                  domain.StatusActive,
		repository.FieldErrorDetail:             "",
	}); err != nil {
		// Soft: agent and phone both exist and work; losing this write is
		// logged but must not fail the signup.
		logger.ErrorContext(ctx, "Failed to persist provisioning outputs", "error", err)
	}

	// 5/6. Wait for enrichment only when source files were attached, then
	// push the enriched profile. Both halves are soft.
	s.enrichAgent(ctx, logger, rec, agentID, profile, req.AttachedFileURLs)

	// 7. Welcome notification, skipped entirely for placeholder numbers: a
	// placeholder must never reach the owner as a real contact number.
	final := !phone.IsPlaceholder(binding.PhoneNumber)
	if final {
		s.notify(ctx, logger, rec, binding.PhoneNumber)
	} else {
		logger.WarnContext(ctx, "Phone number is a non-final placeholder, skipping welcome notification")
	}

	s.publishEvent(ctx, domain.SubjectProvisioningCompleted, rec.ID, agentID, binding.PhoneNumber, domain.StatusActive, "")

	// 8. Done.
	return &ProvisionResult{
		RecordID:         rec.ID,
		AgentID:          agentID,
		PhoneNumber:      binding.PhoneNumber,
		PhoneNumberFinal: final,
	}, nil
}

func (s *ProvisioningAppService) validateVoice(ctx context.Context, logger *slog.Logger, rec *domain.AssistantRecord, voiceChoice string) (*domain.VoiceSelection, error) {
	result, err := s.voiceValidator.Validate(ctx, voiceChoice)
	if err != nil {
		logger.WarnContext(ctx, "Voice validator unreachable, proceeding without validation", "error", err)
		selection, resolveErr := voice.Resolve(voiceChoice)
		if resolveErr != nil {
			// Local resolution is definitive even when the validator is down.
			s.markError(ctx, logger, rec.ID, fmt.Sprintf("invalid voice %q", voiceChoice), nil)
			return nil, domain.NewClientError(fmt.Sprintf("invalid voice selection %q", voiceChoice))
		}
		return selection, nil
	}
	if !result.Valid {
		s.markError(ctx, logger, rec.ID, "invalid voice: "+result.Reason, nil)
		return nil, domain.NewClientError(result.Reason)
	}
	selection, resolveErr := voice.Resolve(voiceChoice)
	if resolveErr != nil {
		s.markError(ctx, logger, rec.ID, fmt.Sprintf("invalid voice %q", voiceChoice), nil)
		return nil, domain.NewClientError(fmt.Sprintf("invalid voice selection %q", voiceChoice))
	}
	return selection, nil
}

func (s *ProvisioningAppService) enrichAgent(ctx context.Context, logger *slog.Logger, rec *domain.AssistantRecord, agentID string, createdProfile domain.AgentProfile, attachedFiles []string) {
	if len(attachedFiles) == 0 {
		enrichmentOutcomeCounter.WithLabelValues("skipped").Inc()
		return
	}

	content, arrived, err := s.enricher.Await(ctx, rec.ID)
	if err != nil {
		logger.WarnContext(ctx, "Enrichment polling aborted", "error", err)
		enrichmentOutcomeCounter.WithLabelValues("timeout").Inc()
		return
	}
	if !arrived {
		// Budget exhaustion degrades to an agent without enrichment.
		logger.WarnContext(ctx, "Derived content never arrived, agent stays unenriched")
		enrichmentOutcomeCounter.WithLabelValues("timeout").Inc()
		return
	}
	enrichmentOutcomeCounter.WithLabelValues("arrived").Inc()

	// Rebuild from the same stored fields as creation; only the knowledge
	// block may differ.
	enriched := prompt.Build(rec, content)
	enriched.Voice = createdProfile.Voice
	if err := s.agents.UpdateAssistant(ctx, agentID, enriched); err != nil {
		// Soft: the agent exists and is usable without enrichment.
		logger.ErrorContext(ctx, "Failed to push enriched profile to agent platform", "error", err)
		return
	}
	logger.InfoContext(ctx, "Agent enriched with derived content", "content_len", len(content))

	if err := s.records.Update(ctx, rec.ID, map[string]any{
		repository.FieldAnalyzedFileContent: content,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to persist normalized derived content", "error", err)
	}
}

func (s *ProvisioningAppService) notify(ctx context.Context, logger *slog.Logger, rec *domain.AssistantRecord, phoneNumber string) {
	details := notifier.WelcomeDetails{
		ToEmail:       rec.OwnerEmail,
		OwnerName:     rec.OwnerName,
		AssistantName: rec.AssistantName,
		PhoneNumber:   phoneNumber,
		EditLink:      s.EditLink(rec.ID),
		ChatLink:      s.ChatLink(rec.ID),
	}
	if err := s.emailNotifier.SendWelcome(ctx, details); err != nil {
		logger.WarnContext(ctx, "Welcome email failed", "error", err)
		notificationCounter.WithLabelValues("email", "error").Inc()
	} else {
		notificationCounter.WithLabelValues("email", "sent").Inc()
	}

	if s.smsSender != nil && rec.OwnerMobile != "" {
		msg := fmt.Sprintf("Hi %s! %s is ready. Save this number: %s", rec.OwnerName, rec.AssistantName, phoneNumber)
		if err := s.smsSender.SendSMS(ctx, rec.OwnerMobile, msg); err != nil {
			logger.WarnContext(ctx, "Welcome SMS failed", "error", err)
			notificationCounter.WithLabelValues("sms", "error").Inc()
		} else {
			notificationCounter.WithLabelValues("sms", "sent").Inc()
		}
	}
}

// markError is the compensating status write. Its own failure is logged and
// swallowed so it never masks the error that brought us here.
func (s *ProvisioningAppService) markError(ctx context.Context, logger *slog.Logger, recordID uuid.UUID, detail string, extra map[string]any) {
	fields := map[string]any{
		repository.FieldStatus:      domain.StatusError,
		repository.FieldErrorDetail: detail,
	}
	for k, v := range extra {
		fields[k] = v
	}
	if err := s.records.Update(ctx, recordID, fields); err != nil {
		logger.ErrorContext(ctx, "Compensating status write failed", "error", err, "detail", detail)
	}
}

func (s *ProvisioningAppService) publishEvent(ctx context.Context, subject string, recordID uuid.UUID, agentID, phoneNumber string, status domain.RecordStatus, errDetail string) {
	if s.events == nil {
		return
	}
	event := domain.ProvisioningEvent{
		RecordID:    recordID.String(),
		AgentID:     agentID,
		PhoneNumber: phoneNumber,
		Status:      status,
		Error:       errDetail,
		OccurredAt:  time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.events.Publish(ctx, subject, data); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish provisioning event", "error", err, "subject", subject)
	}
}
