package signature

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinary(url, folder string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromURL(url)
	if err != nil {
		return nil, err
	}
	return &Cloudinary{cld: cld, folder: folder}, nil
}

func (c *Cloudinary) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	overwrite := false
	unique := false
	dir, file := path.Split(name)
	res, err := c.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:         path.Join(c.folder, dir),
		PublicID:       strings.TrimSuffix(file, path.Ext(file)),
		Overwrite:      &overwrite,
		UniqueFilename: &unique,
		ResourceType:   "image",
	})
	if err != nil {
		return "", err
	}
	if res.Error.Message != "" {
		return "", &uploadError{message: res.Error.Message}
	}
	return res.SecureURL, nil
}

type uploadError struct {
	message string
}

func (e *uploadError) Error() string {
	return "cloudinary upload: " + e.message
}
