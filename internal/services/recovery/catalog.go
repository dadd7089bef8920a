package recovery

import (
	"context"
	"fmt"
	"slices"

	"github.com/magabrotheeeer/filesfy/internal/models"
)

const gib int64 = 1 << 30

var catalogDevices = []models.Device{
	{ID: "device-c", Name: "Local Disk", Type: "hdd", SizeInBytes: 500 * gib, Health: "good", Icon: "hdd"},
	{ID: "device-usb", Name: "External HDD", Type: "external", SizeInBytes: 1000 * gib, Health: "good", Icon: "external"},
	{ID: "device-pendrive", Name: "Pendrive", Type: "usb", SizeInBytes: 32 * gib, Health: "good", Icon: "usb"},
}

var catalogItems = []models.Item{
	{ID: 1, Name: "Foto_Férias_2024.jpg", SizeMB: 4.2, Type: TypeImage},
	{ID: 2, Name: "Vídeo_Aniversário.mp4", SizeMB: 512, Type: TypeVideo},
	{ID: 3, Name: "Documento_Importante.pdf", SizeMB: 2.1, Type: TypeDocument},
	{ID: 4, Name: "Planilha_2024.xlsx", SizeMB: 1.5, Type: TypeDocument},
	{ID: 5, Name: "Música_Favorita.mp3", SizeMB: 8.5, Type: TypeAudio},
	{ID: 6, Name: "Apresentação.pptx", SizeMB: 15.3, Type: TypeDocument},
	{ID: 7, Name: "Código_Projeto.zip", SizeMB: 52.1, Type: TypeArchive},
	{ID: 8, Name: "Backup_Database.sql", SizeMB: 128.5, Type: TypeDocument},
	{ID: 9, Name: "Vídeo_Completo.mkv", SizeMB: 256, Type: TypeVideo},
	{ID: 10, Name: "Arquivo_Grande.iso", SizeMB: 450, Type: TypeArchive},
}

// CatalogSource источник с фиксированным набором устройств и файлов.
// Любое устройство возвращает один и тот же список файлов.
type CatalogSource struct{}

// NewCatalogSource создаёт источник демонстрационных данных.
func NewCatalogSource() *CatalogSource {
	return &CatalogSource{}
}

// Devices возвращает демонстрационные устройства.
func (c *CatalogSource) Devices(_ context.Context) ([]models.Device, error) {
	return slices.Clone(catalogDevices), nil
}

// Candidates возвращает файлы указанных типов в порядке каталога.
func (c *CatalogSource) Candidates(ctx context.Context, _ string, types []string) ([]models.Item, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("recovery.Candidates: %w", ctx.Err())
	default:
	}

	items := make([]models.Item, 0, len(catalogItems))
	for _, it := range catalogItems {
		if !slices.Contains(types, it.Type) {
			continue
		}
		it.Size = formatMB(it.SizeMB)
		items = append(items, it)
	}
	return items, nil
}

func formatMB(size float64) string {
	return fmt.Sprintf("%gMB", size)
}
