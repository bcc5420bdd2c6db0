package downloads

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hferret/shelfarr/internal/clients"
	"github.com/hferret/shelfarr/internal/models"
	"github.com/hferret/shelfarr/internal/repositories"
	"github.com/hferret/shelfarr/internal/secrets"
)

// ClientService manages download client definitions: CRUD, credential
// encryption at rest, health tracking and adapter construction.
type ClientService struct {
	repo      repositories.DownloadClientRepository
	factory   *clients.Factory
	encryptor *secrets.Encryptor
	logger    *logrus.Logger
}

// NewClientService creates a new client service. A nil encryptor stores
// credentials in plaintext.
func NewClientService(
	repo repositories.DownloadClientRepository,
	factory *clients.Factory,
	encryptor *secrets.Encryptor,
	logger *logrus.Logger,
) *ClientService {
	return &ClientService{
		repo:      repo,
		factory:   factory,
		encryptor: encryptor,
		logger:    logger,
	}
}

// Create registers a new download client definition
func (s *ClientService) Create(ctx context.Context, req *models.DownloadClientCreateRequest) (*models.DownloadClientDefinition, error) {
	def := &models.DownloadClientDefinition{
		Name:           req.Name,
		ClientType:     req.ClientType,
		Enabled:        req.Enabled,
		Host:           req.Host,
		Port:           req.Port,
		UseSSL:         req.UseSSL,
		URLBase:        req.URLBase,
		Username:       req.Username,
		TimeoutSeconds: req.TimeoutSeconds,
		Priority:       req.Priority,
		Category:       req.Category,
		DownloadPath:   req.DownloadPath,
		Status:         models.ClientStatusUnhealthy,
	}
	if !def.Enabled {
		def.Status = models.ClientStatusDisabled
	}
	if def.Priority <= 0 {
		def.Priority = 1
	}

	// Verify the type is supported before persisting anything.
	if _, err := s.factory.New(def); err != nil {
		return nil, err
	}

	var err error
	if def.Password, err = s.encryptSecret(req.Password); err != nil {
		return nil, err
	}
	if def.APIKey, err = s.encryptSecret(req.APIKey); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, def); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"client_id":   def.ID,
		"client_type": def.ClientType,
		"name":        def.Name,
	}).Info("Download client registered")
	return def, nil
}

// Get retrieves a download client definition
func (s *ClientService) Get(ctx context.Context, id int64) (*models.DownloadClientDefinition, error) {
	return s.repo.GetByID(ctx, id)
}

// List retrieves download client definitions
func (s *ClientService) List(ctx context.Context, enabledOnly bool) ([]*models.DownloadClientDefinition, error) {
	return s.repo.List(ctx, enabledOnly)
}

// Update applies a partial update to a download client definition. A
// supplied password or API key arrives in plaintext and is re-encrypted;
// nil leaves the stored secret untouched.
func (s *ClientService) Update(ctx context.Context, id int64, req *models.DownloadClientUpdateRequest) (*models.DownloadClientDefinition, error) {
	def, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		def.Name = *req.Name
	}
	if req.Enabled != nil {
		def.Enabled = *req.Enabled
		if def.Enabled {
			if def.Status == models.ClientStatusDisabled {
				def.Status = models.ClientStatusUnhealthy
			}
		} else {
			def.Status = models.ClientStatusDisabled
		}
	}
	if req.Host != nil {
		def.Host = *req.Host
	}
	if req.Port != nil {
		def.Port = *req.Port
	}
	if req.UseSSL != nil {
		def.UseSSL = *req.UseSSL
	}
	if req.URLBase != nil {
		def.URLBase = req.URLBase
	}
	if req.Username != nil {
		def.Username = req.Username
	}
	if req.Password != nil {
		if def.Password, err = s.encryptSecret(req.Password); err != nil {
			return nil, err
		}
	}
	if req.APIKey != nil {
		if def.APIKey, err = s.encryptSecret(req.APIKey); err != nil {
			return nil, err
		}
	}
	if req.TimeoutSeconds != nil {
		def.TimeoutSeconds = *req.TimeoutSeconds
	}
	if req.Priority != nil {
		def.Priority = *req.Priority
	}
	if req.Category != nil {
		def.Category = req.Category
	}
	if req.DownloadPath != nil {
		def.DownloadPath = req.DownloadPath
	}

	if err := s.repo.Update(ctx, def); err != nil {
		return nil, err
	}
	return def, nil
}

// Delete removes a download client definition
func (s *ClientService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Adapter builds the protocol adapter for a definition. The adapter receives
// a detached clone with decrypted credentials; the stored definition is
// never mutated.
func (s *ClientService) Adapter(def *models.DownloadClientDefinition) (clients.DownloadClient, error) {
	clone := def.Clone()

	var err error
	if clone.Password, err = s.decryptSecret(def.ID, "password", clone.Password); err != nil {
		return nil, err
	}
	if clone.APIKey, err = s.decryptSecret(def.ID, "api_key", clone.APIKey); err != nil {
		return nil, err
	}

	return s.factory.New(clone)
}

// TestConnection runs the adapter's connection test and folds the outcome
// into the client's health state.
func (s *ClientService) TestConnection(ctx context.Context, id int64) error {
	def, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	adapter, err := s.Adapter(def)
	if err != nil {
		return err
	}

	testErr := adapter.TestConnection(ctx)
	if recordErr := s.RecordResult(ctx, def, testErr); recordErr != nil {
		s.logger.WithError(recordErr).WithField("client_id", def.ID).
			Warn("Failed to persist client health")
	}
	return testErr
}

// GetClientItems fetches the live transfer list from a client. Clients
// without a status API return ErrTrackingNotSupported.
func (s *ClientService) GetClientItems(ctx context.Context, def *models.DownloadClientDefinition) ([]models.ClientItem, error) {
	adapter, err := s.Adapter(def)
	if err != nil {
		return nil, err
	}
	tracker, err := clients.AsTracker(adapter)
	if err != nil {
		return nil, err
	}
	return tracker.GetItems(ctx)
}

// RecordResult applies one connection outcome to the health state machine
// and persists the definition. Disabled clients keep their disabled status
// no matter what the probe said.
func (s *ClientService) RecordResult(ctx context.Context, def *models.DownloadClientDefinition, opErr error) error {
	now := time.Now()
	def.LastCheckedAt = &now

	switch {
	case !def.Enabled:
		def.Status = models.ClientStatusDisabled
	case opErr == nil:
		if def.Status != models.ClientStatusHealthy {
			s.logger.WithFields(logrus.Fields{
				"client_id": def.ID,
				"name":      def.Name,
			}).Info("Download client recovered")
		}
		def.Status = models.ClientStatusHealthy
		def.ErrorCount = 0
		def.ErrorMessage = nil
		def.LastSuccessfulConnectionAt = &now
	default:
		// A failed connection check means the client is unusable, not
		// degraded. Degraded is reserved for partial-capability states.
		def.ErrorCount++
		msg := opErr.Error()
		def.ErrorMessage = &msg
		def.Status = models.ClientStatusUnhealthy
		s.logger.WithError(opErr).WithFields(logrus.Fields{
			"client_id":   def.ID,
			"name":        def.Name,
			"error_count": def.ErrorCount,
			"status":      def.Status,
		}).Warn("Download client connection failed")
	}

	return s.repo.Update(ctx, def)
}

// CheckAll probes every enabled client once
func (s *ClientService) CheckAll(ctx context.Context) {
	defs, err := s.repo.List(ctx, true)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list clients for health check")
		return
	}
	for _, def := range defs {
		adapter, err := s.Adapter(def)
		if err != nil {
			if recordErr := s.RecordResult(ctx, def, err); recordErr != nil {
				s.logger.WithError(recordErr).WithField("client_id", def.ID).
					Warn("Failed to persist client health")
			}
			continue
		}
		if err := s.RecordResult(ctx, def, adapter.TestConnection(ctx)); err != nil {
			s.logger.WithError(err).WithField("client_id", def.ID).
				Warn("Failed to persist client health")
		}
	}
}

func (s *ClientService) encryptSecret(plaintext *string) (*string, error) {
	if plaintext == nil || *plaintext == "" {
		return plaintext, nil
	}
	stored, err := s.encryptor.Encrypt(*plaintext)
	if err != nil {
		return nil, fmt.Errorf("encrypting credential: %w", err)
	}
	return &stored, nil
}

func (s *ClientService) decryptSecret(clientID int64, field string, stored *string) (*string, error) {
	if stored == nil || *stored == "" {
		return stored, nil
	}
	value, encrypted, err := s.encryptor.Decrypt(*stored)
	if err != nil {
		return nil, fmt.Errorf("decrypting credential: %w", err)
	}
	if !encrypted && s.encryptor != nil {
		// Legacy plaintext from before encryption was enabled still works,
		// but flag it so the operator can re-save the client.
		s.logger.WithFields(logrus.Fields{
			"client_id": clientID,
			"field":     field,
		}).Warn("Stored credential is not encrypted")
	}
	return &value, nil
}
