package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kendallhq/kendall/internal/assistant_service/app"
)

// Inbound provisioning bodies arrive in one of two schemas: the flat legacy
// shape and the newer wizard shape. The wizard shape is detected by the
// presence of both `kendallName` and `userContextAndRules`; each schema has
// its own required fields and both normalize into one app.ProvisionRequest,
// so nothing past this file branches on which schema arrived.

type wizardProvisionRequest struct {
	Name                string   `json:"name" validate:"required"`
	Email               string   `json:"email" validate:"required,email"`
	MobileNumber        string   `json:"mobileNumber"`
	KendallName         string   `json:"kendallName" validate:"required"`
	KendallNickname     string   `json:"kendallNickname"`
	PersonalityTraits   []string `json:"personalityTraits"`
	CustomPersonality   string   `json:"customPersonality"`
	Boundaries          string   `json:"boundaries"`
	UseCase             string   `json:"useCase" validate:"required"`
	UserContextAndRules string   `json:"userContextAndRules" validate:"required"`
	VoiceChoice         string   `json:"voiceChoice"`
	CallForwarding      bool     `json:"callForwarding"`
	AttachedFileURLs    []string `json:"attachedFileUrls"`
}

func (r wizardProvisionRequest) normalize() app.ProvisionRequest {
	return app.ProvisionRequest{
		OwnerName:         r.Name,
		OwnerEmail:        r.Email,
		OwnerMobile:       r.MobileNumber,
		AssistantName:     r.KendallName,
		Nickname:          r.KendallNickname,
		PersonalityTraits: r.PersonalityTraits,
		CustomPersonality: r.CustomPersonality,
		Boundaries:        r.Boundaries,
		UseCase:           r.UseCase,
		ContextRules:      r.UserContextAndRules,
		ForwardingEnabled: r.CallForwarding,
		VoiceChoice:       r.VoiceChoice,
		AttachedFileURLs:  r.AttachedFileURLs,
	}
}

type legacyProvisionRequest struct {
	UserName          string   `json:"userName" validate:"required"`
	UserEmail         string   `json:"userEmail" validate:"required,email"`
	UserMobile        string   `json:"userMobile"`
	AssistantName     string   `json:"assistantName" validate:"required"`
	Nickname          string   `json:"nickname"`
	Personality       string   `json:"personality"`
	Boundaries        string   `json:"boundaries"`
	UseCase           string   `json:"useCase"`
	ContextRules      string   `json:"contextRules"`
	Voice             string   `json:"voice"`
	ForwardingEnabled bool     `json:"forwardingEnabled"`
	AttachedFileURLs  []string `json:"attachedFileUrls"`
}

func (r legacyProvisionRequest) normalize() app.ProvisionRequest {
	return app.ProvisionRequest{
		OwnerName:         r.UserName,
		OwnerEmail:        r.UserEmail,
		OwnerMobile:       r.UserMobile,
		AssistantName:     r.AssistantName,
		Nickname:          r.Nickname,
		CustomPersonality: r.Personality,
		Boundaries:        r.Boundaries,
		UseCase:           r.UseCase,
		ContextRules:      r.ContextRules,
		ForwardingEnabled: r.ForwardingEnabled,
		VoiceChoice:       r.Voice,
		AttachedFileURLs:  r.AttachedFileURLs,
	}
}

// schemaProbe only checks which discriminator keys are present.
type schemaProbe struct {
	KendallName         *string `json:"kendallName"`
	UserContextAndRules *string `json:"userContextAndRules"`
}

// decodeProvisionRequest picks the schema, validates it, and normalizes it.
// Validation failures come back as a field-enumerating error message.
func decodeProvisionRequest(body []byte, validate *validator.Validate) (app.ProvisionRequest, error) {
	var probe schemaProbe
	if err := json.Unmarshal(body, &probe); err != nil {
		return app.ProvisionRequest{}, fmt.Errorf("invalid JSON payload: %w", err)
	}

	if probe.KendallName != nil && probe.UserContextAndRules != nil {
		var req wizardProvisionRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return app.ProvisionRequest{}, fmt.Errorf("invalid JSON payload: %w", err)
		}
		if err := validate.Struct(req); err != nil {
			return app.ProvisionRequest{}, validationError(err)
		}
		return req.normalize(), nil
	}

	var req legacyProvisionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return app.ProvisionRequest{}, fmt.Errorf("invalid JSON payload: %w", err)
	}
	if err := validate.Struct(req); err != nil {
		return app.ProvisionRequest{}, validationError(err)
	}
	return req.normalize(), nil
}

// validationError flattens validator output into one message enumerating
// every offending field by its JSON name.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid request: %w", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, jsonFieldName(fe.Field()))
	}
	return fmt.Errorf("missing or invalid fields: %s", strings.Join(fields, ", "))
}

// jsonFieldName lower-cases the leading character of a struct field name,
// which matches every JSON tag in the two request schemas.
func jsonFieldName(structField string) string {
	if structField == "" {
		return structField
	}
	return strings.ToLower(structField[:1]) + structField[1:]
}

// ProvisionResponse is the 200 body for a completed provisioning run.
type ProvisionResponse struct {
	Success     bool   `json:"success"`
	AgentID     string `json:"agentId"`
	PhoneNumber string `json:"phoneNumber"`
	RecordID    string `json:"recordId"`
	EditLink    string `json:"editLink"`
	ChatLink    string `json:"chatLink"`
}

// FailureResponse is the body for every non-2xx outcome.
type FailureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ChatMessageRequest is the body for POST /chat/{recordID}/messages.
type ChatMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content" validate:"required"`
}

// ChatMessageResponse is one stored chat message.
type ChatMessageResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Sentiment string `json:"sentiment"`
	CreatedAt string `json:"createdAt"`
}

// TokenRefreshRequest is the body for POST /integrations/google/refresh.
type TokenRefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// TokenRefreshResponse returns the refreshed access token.
type TokenRefreshResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresAt   string `json:"expiresAt"`
}
