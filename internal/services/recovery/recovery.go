// Package recovery применяет квоты тарифа к сканированию и восстановлению
// файлов.
//
// Сканирование допускает файлы жадно, в порядке обнаружения: отклонённый
// файл не расходует квоту, и следующий за ним файл меньшего размера ещё
// может пройти. Восстановление проверяет запрос целиком и частичного
// допуска не делает.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/magabrotheeeer/filesfy/internal/config"
	"github.com/magabrotheeeer/filesfy/internal/lib/apperr"
	"github.com/magabrotheeeer/filesfy/internal/models"
)

// Типы файлов.
const (
	TypeImage    = "image"
	TypeVideo    = "video"
	TypeAudio    = "audio"
	TypeDocument = "document"
	TypeArchive  = "archive"
)

// Причины отказа в допуске.
const (
	ReasonFileLimit = "file-limit"
	ReasonSizeLimit = "size-limit"
)

const (
	planFree = "free"
	planPro  = "pro"

	statusCompleted = "completed"

	// GroupAll группа, включающая все типы файлов.
	GroupAll = "todos"

	// sizeEpsilon допуск при сравнении суммы размеров с лимитом.
	sizeEpsilon = 1e-9
)

var fileTypeGroups = map[string][]string{
	GroupAll:  {TypeImage, TypeVideo, TypeAudio, TypeDocument, TypeArchive},
	"imagens": {TypeImage},
	"videos":  {TypeVideo},
	"audio":   {TypeAudio},
	"docs":    {TypeDocument},
}

// CandidateSource перечисляет устройства и файлы, доступные для восстановления.
type CandidateSource interface {
	Devices(ctx context.Context) ([]models.Device, error)
	Candidates(ctx context.Context, deviceID string, types []string) ([]models.Item, error)
}

// Metrics счётчик решений о допуске.
type Metrics interface {
	ObserveAdmission(plan, outcome string)
}

// Service применяет квоты тарифа.
type Service struct {
	source  CandidateSource
	limits  config.Limits
	metrics Metrics
	now     func() time.Time
	log     *slog.Logger
}

// New создаёт сервис. metrics может быть nil.
func New(source CandidateSource, limits config.Limits, metrics Metrics, log *slog.Logger) *Service {
	return &Service{
		source:  source,
		limits:  limits.WithDefaults(),
		metrics: metrics,
		now:     time.Now,
		log:     log,
	}
}

// NormalizePlan приводит название тарифа к нижнему регистру.
// Пустой и неизвестный тариф считаются бесплатным.
func NormalizePlan(plan string) string {
	if p, ok := models.ParsePlan(plan); ok && p == models.PlanPro {
		return planPro
	}
	return planFree
}

// LimitsFor возвращает квоты тарифа.
func (s *Service) LimitsFor(plan string) models.Limits {
	l := s.limits.Free
	if NormalizePlan(plan) == planPro {
		l = s.limits.Pro
	}
	return models.Limits{
		MaxFiles:  l.MaxFiles,
		MaxSizeMB: l.MaxSizeMB,
		MaxScans:  l.MaxScans,
		MaxDays:   l.MaxDays,
	}
}

// checkSizes отклоняет файлы с отрицательным или нечисловым размером.
func checkSizes(items []models.Item) error {
	for _, it := range items {
		if it.SizeMB < 0 || math.IsNaN(it.SizeMB) || math.IsInf(it.SizeMB, 0) {
			return fmt.Errorf("%w: file %d has invalid size %v", apperr.ErrValidation, it.ID, it.SizeMB)
		}
	}
	return nil
}

// Admit проходит по файлам слева направо и решает, какие из них укладываются
// в квоту. Превышение числа файлов имеет приоритет над превышением размера.
func (s *Service) Admit(plan string, items []models.Item) (models.ScanResult, error) {
	const op = "recovery.Admit"
	if err := checkSizes(items); err != nil {
		return models.ScanResult{}, fmt.Errorf("%s: %w", op, err)
	}
	plan = NormalizePlan(plan)
	limits := s.LimitsFor(plan)

	results := make([]models.Admission, 0, len(items))
	var count int
	var total float64
	for _, it := range items {
		a := models.Admission{Item: it}
		switch {
		case count >= limits.MaxFiles:
			a.BlockedReason = ReasonFileLimit
		case total+it.SizeMB > limits.MaxSizeMB+sizeEpsilon:
			a.BlockedReason = ReasonSizeLimit
		default:
			a.CanRecover = true
			count++
			total += it.SizeMB
		}
		s.observe(plan, a)
		results = append(results, a)
	}

	return models.ScanResult{
		Plan:             plan,
		FilesFound:       len(results),
		FilesRecoverable: count,
		AdmittedSizeMB:   total,
		Results:          results,
		Limits:           limits,
	}, nil
}

func (s *Service) observe(plan string, a models.Admission) {
	if s.metrics == nil {
		return
	}
	outcome := "admitted"
	if !a.CanRecover {
		outcome = a.BlockedReason
	}
	s.metrics.ObserveAdmission(plan, outcome)
}

// Scan сканирует устройство и применяет квоты тарифа к найденным файлам.
// Неизвестная группа типов считается группой всех файлов.
func (s *Service) Scan(ctx context.Context, plan, deviceID, fileType string) (*models.ScanResult, error) {
	const op = "recovery.Scan"
	if strings.TrimSpace(deviceID) == "" {
		return nil, fmt.Errorf("%s: %w: device id is required", op, apperr.ErrValidation)
	}

	group := strings.ToLower(strings.TrimSpace(fileType))
	types, ok := fileTypeGroups[group]
	if !ok {
		group = GroupAll
		types = fileTypeGroups[GroupAll]
	}

	started := s.now()
	items, err := s.source.Candidates(ctx, deviceID, types)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.Admit(plan, items)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res.ScanID = "scan-" + uuid.NewString()
	res.DeviceID = deviceID
	res.FileType = group
	res.Status = statusCompleted
	res.Progress = 100
	res.StartTime = started
	res.CompletedTime = s.now()

	s.log.Info("scan completed",
		slog.String("op", op),
		slog.String("scan_id", res.ScanID),
		slog.String("plan", res.Plan),
		slog.Int("found", res.FilesFound),
		slog.Int("recoverable", res.FilesRecoverable),
	)
	return &res, nil
}

// ScanStatus возвращает состояние сканирования. Сканирование выполняется
// синхронно, поэтому любое известное сканирование уже завершено.
func (s *Service) ScanStatus(scanID string) (*models.ScanStatus, error) {
	const op = "recovery.ScanStatus"
	if strings.TrimSpace(scanID) == "" {
		return nil, fmt.Errorf("%s: %w: scan id is required", op, apperr.ErrValidation)
	}
	return &models.ScanStatus{ScanID: scanID, Status: statusCompleted, Progress: 100}, nil
}

// Recover восстанавливает выбранные файлы в destination. Запрос, не
// укладывающийся в квоту, отклоняется целиком.
func (s *Service) Recover(ctx context.Context, plan string, files []models.Item, destination string) (*models.RecoveryReceipt, error) {
	const op = "recovery.Recover"
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w: no files selected", op, apperr.ErrValidation)
	}
	if strings.TrimSpace(destination) == "" {
		return nil, fmt.Errorf("%s: %w: destination is required", op, apperr.ErrValidation)
	}
	if err := checkSizes(files); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	plan = NormalizePlan(plan)
	limits := s.LimitsFor(plan)
	if len(files) > limits.MaxFiles {
		s.observeRecover(plan, "rejected")
		return nil, fmt.Errorf("%s: %w: plan %s allows at most %d files per recovery",
			op, apperr.ErrQuotaExceeded, strings.ToUpper(plan), limits.MaxFiles)
	}

	var total float64
	for _, f := range files {
		total += f.SizeMB
	}
	if total > limits.MaxSizeMB+sizeEpsilon {
		s.observeRecover(plan, "rejected")
		return nil, fmt.Errorf("%s: %w: total size %.2fMB exceeds the %gMB limit of plan %s",
			op, apperr.ErrQuotaExceeded, total, limits.MaxSizeMB, strings.ToUpper(plan))
	}

	started := s.now()
	receipt := &models.RecoveryReceipt{
		RecoveryID:    "recovery-" + uuid.NewString(),
		FilesCount:    len(files),
		TotalSizeMB:   total,
		TotalSize:     fmt.Sprintf("%.2fMB", total),
		Destination:   destination,
		Status:        statusCompleted,
		Progress:      100,
		StartTime:     started,
		CompletedTime: s.now(),
		Message:       fmt.Sprintf("%d file(s) recovered to %s", len(files), destination),
	}
	s.observeRecover(plan, "recovered")
	s.log.Info("files recovered",
		slog.String("op", op),
		slog.String("recovery_id", receipt.RecoveryID),
		slog.String("plan", plan),
		slog.Int("files", receipt.FilesCount),
	)
	return receipt, nil
}

func (s *Service) observeRecover(plan, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveAdmission(plan, outcome)
	}
}

// Devices возвращает устройства, доступные для сканирования.
func (s *Service) Devices(ctx context.Context) ([]models.Device, error) {
	const op = "recovery.Devices"
	devices, err := s.source.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return devices, nil
}
