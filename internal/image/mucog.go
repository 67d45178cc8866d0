package image

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/mucog"
	"github.com/google/tiff"
)

// StackSlices interleaves the cog slices of a cube into a single multi-temporal
// file, so that reading one block of every slice is one contiguous range request.
// The slices must share the grid and the data format, which a cube guarantees.
// It returns the path of the stacked file under workDir.
func StackSlices(workDir string, slicePaths []string) (string, error) {
	totalSize := int64(0)
	multicog := mucog.New()
	for _, slicePath := range slicePaths {
		sliceFile, err := os.Open(slicePath)
		if err != nil {
			return "", fmt.Errorf("StackSlices: %w", err)
		}

		//noinspection GoDeferInLoop
		defer sliceFile.Close()

		st, err := sliceFile.Stat()
		if err != nil {
			return "", fmt.Errorf("StackSlices.Stat[%s]: %w", slicePath, err)
		}
		totalSize += st.Size()

		if err := appendSlice(multicog, sliceFile, slicePath); err != nil {
			return "", fmt.Errorf("StackSlices.%w", err)
		}
	}

	return writeStack(multicog, workDir, totalSize)
}

func appendSlice(multicog *mucog.MultiCOG, sliceFile *os.File, slicePath string) error {
	tif, err := tiff.Parse(sliceFile, nil, nil)
	if err != nil {
		return fmt.Errorf("appendSlice.Parse[%s]: %w", slicePath, err)
	}

	ifds, err := mucog.LoadTIFF(tif)
	if err != nil {
		return fmt.Errorf("appendSlice.LoadTIFF[%s]: %w", slicePath, err)
	}

	// The slice is addressed by its file name inside the stack
	if len(ifds) == 1 && ifds[0].DocumentName == "" {
		ifds[0].DocumentName = path.Base(slicePath)
		ifds[0].DocumentName = strings.TrimSuffix(
			ifds[0].DocumentName, filepath.Ext(ifds[0].DocumentName))
	}

	for _, ifd := range ifds {
		multicog.AppendIFD(ifd)
	}
	return nil
}

func writeStack(multicog *mucog.MultiCOG, workDir string, totalSize int64) (string, error) {
	bigtiff := totalSize > int64(^uint32(0))
	stackPath := path.Join(workDir, "cube.tif")
	stackFile, err := os.Create(stackPath)
	if err != nil {
		return "", fmt.Errorf("writeStack: %w", err)
	}

	if err = multicog.Write(stackFile, bigtiff); err != nil {
		return "", fmt.Errorf("writeStack.Write: %w", err)
	}

	if err = stackFile.Close(); err != nil {
		return "", fmt.Errorf("writeStack.Close: %w", err)
	}
	return stackPath, nil
}
