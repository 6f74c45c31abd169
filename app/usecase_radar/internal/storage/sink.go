package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/model"
)

// Sink 报告的持久化目标，返回保存位置
type Sink interface {
	Save(ctx context.Context, report *model.Report) (string, error)
}

// Multi 依次写入多个目标，单个失败不影响其余目标
type Multi []Sink

// Save implements Sink
func (m Multi) Save(ctx context.Context, report *model.Report) (string, error) {
	var (
		locations []string
		errList   []error
	)
	for _, s := range m {
		loc, err := s.Save(ctx, report)
		if err != nil {
			errList = append(errList, err)
			continue
		}
		locations = append(locations, loc)
	}
	return strings.Join(locations, ", "), errors.Join(errList...)
}
