package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"prodfetch/pkg/logger"
)

const folderMimeType = "application/vnd.google-apps.folder"

// DriveAPI is the subset of Google Drive operations DriveStore needs
type DriveAPI interface {
	// FindFolder returns the id of the folder called name under parentID, or "" if none exists
	FindFolder(ctx context.Context, name, parentID string) (string, error)
	CreateFolder(ctx context.Context, name, parentID string) (string, error)
	Upload(ctx context.Context, name, folderID string, r io.Reader) (string, error)
}

// DriveStore uploads images into one Drive folder per item code
type DriveStore struct {
	api      DriveAPI
	parentID string
	tempDir  string
	logger   logger.Logger
}

// NewDriveStore creates a store uploading below parentID. tempDir holds the
// local copy of each image until it is uploaded ("" uses os.TempDir).
func NewDriveStore(api DriveAPI, parentID, tempDir string, log logger.Logger) *DriveStore {
	if log == nil {
		log = logger.GetLogger()
	}
	return &DriveStore{
		api:      api,
		parentID: parentID,
		tempDir:  tempDir,
		logger:   log,
	}
}

// Save buffers r to a temporary file, uploads it and returns the Drive file id
func (s *DriveStore) Save(ctx context.Context, itemCode, name string, r io.Reader) (ArtifactRef, error) {
	tmp, err := os.CreateTemp(s.tempDir, "prodfetch-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return "", fmt.Errorf("failed to buffer image data: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind temporary file: %w", err)
	}

	folderID, err := s.folder(ctx, SanitizeName(itemCode))
	if err != nil {
		return "", err
	}

	id, err := s.api.Upload(ctx, SanitizeName(name), folderID, tmp)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", name, err)
	}

	s.logger.DebugWithFields("Uploaded image", map[string]interface{}{
		"item_code": itemCode,
		"name":      name,
		"file_id":   id,
	})
	return ArtifactRef(id), nil
}

// folder looks up the item folder under the parent, creating it if absent
func (s *DriveStore) folder(ctx context.Context, name string) (string, error) {
	id, err := s.api.FindFolder(ctx, name, s.parentID)
	if err != nil {
		return "", fmt.Errorf("failed to look up folder %s: %w", name, err)
	}
	if id != "" {
		return id, nil
	}

	id, err = s.api.CreateFolder(ctx, name, s.parentID)
	if err != nil {
		return "", fmt.Errorf("failed to create folder %s: %w", name, err)
	}
	s.logger.InfoWithFields("Created Drive folder", map[string]interface{}{
		"folder":    name,
		"folder_id": id,
	})
	return id, nil
}

// GoogleDrive implements DriveAPI with the Drive v3 API
type GoogleDrive struct {
	files *drive.FilesService
}

// NewGoogleDrive authenticates with service-account credentials JSON
func NewGoogleDrive(ctx context.Context, credentialsJSON []byte, opts ...option.ClientOption) (*GoogleDrive, error) {
	opts = append([]option.ClientOption{
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(drive.DriveScope),
	}, opts...)

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &GoogleDrive{files: svc.Files}, nil
}

// folderQuery builds the Drive search expression for a named child folder
func folderQuery(name, parentID string) string {
	escape := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return fmt.Sprintf("name = '%s' and mimeType = '%s' and '%s' in parents and trashed = false",
		escape.Replace(name), folderMimeType, escape.Replace(parentID))
}

// FindFolder implements DriveAPI
func (g *GoogleDrive) FindFolder(ctx context.Context, name, parentID string) (string, error) {
	list, err := g.files.List().
		Q(folderQuery(name, parentID)).
		Fields("files(id, name)").
		PageSize(1).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

// CreateFolder implements DriveAPI
func (g *GoogleDrive) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	f, err := g.files.Create(&drive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parentID},
	}).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return f.Id, nil
}

// Upload implements DriveAPI
func (g *GoogleDrive) Upload(ctx context.Context, name, folderID string, r io.Reader) (string, error) {
	f, err := g.files.Create(&drive.File{
		Name:    name,
		Parents: []string{folderID},
	}).Media(r).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return f.Id, nil
}
