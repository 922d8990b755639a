package feature

import (
	"context"
	"fmt"
	"strings"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	feasttypes "github.com/feast-dev/feast/sdk/go/protos/feast/types"
)

// FeastProvider 是基于官方 Feast Go SDK 的 Provider 实现。
//
// 特征命名约定：
//   - 人口统计学属性：{DemoView}:{attr}，值为字符串
//   - 类别偏好权重：{PrefView}:{category}，值为 double
//
// 工程特征：
//   - 实时性：优秀（gRPC 低延迟、连接复用）
//   - 可替换性：实现 Provider 接口，可用 MemoryProvider 直接替换
type FeastProvider struct {
	client  *feastsdk.GrpcClient
	project string

	// DemoView 是人口统计学特征视图名，如 "user_demographics"
	DemoView string
	// DemoAttrs 是要拉取的属性名列表，如 ["age_group", "income_level"]
	DemoAttrs []string

	// PrefView 是类别偏好特征视图名，如 "user_category_prefs"
	PrefView string
	// PrefCategories 是要拉取的类别列表
	PrefCategories []string
}

// NewFeastProvider 创建 Feast 特征提供者。port 为 0 时使用默认 6565。
func NewFeastProvider(host string, port int, project string) (*FeastProvider, error) {
	if port == 0 {
		port = 6565
	}
	client, err := feastsdk.NewGrpcClient(host, port)
	if err != nil {
		return nil, fmt.Errorf("创建 Feast gRPC 客户端失败: %w", err)
	}
	return &FeastProvider{
		client:  client,
		project: project,
	}, nil
}

func (p *FeastProvider) fetch(ctx context.Context, userID string, features []string) (feastsdk.Row, error) {
	if len(features) == 0 {
		return feastsdk.Row{}, nil
	}

	req := &feastsdk.OnlineFeaturesRequest{
		Features: features,
		Entities: []feastsdk.Row{
			{"user_id": feastsdk.StrVal(userID)},
		},
		Project: p.project,
	}

	resp, err := p.client.GetOnlineFeatures(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("feast get online features failed: %w", err)
	}

	rows := resp.Rows()
	if len(rows) != 1 {
		return nil, fmt.Errorf("response row count mismatch: expected 1, got %d", len(rows))
	}
	return rows[0], nil
}

// featureField 取特征全名的最后一段作为 map key。
// "user_demographics:age_group" -> "age_group"
func featureField(feature string) string {
	if i := strings.LastIndex(feature, ":"); i >= 0 {
		return feature[i+1:]
	}
	return feature
}

func (p *FeastProvider) Demographics(ctx context.Context, userID string) (map[string]string, error) {
	features := make([]string, 0, len(p.DemoAttrs))
	for _, attr := range p.DemoAttrs {
		features = append(features, p.DemoView+":"+attr)
	}

	row, err := p.fetch(ctx, userID, features)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(features))
	for _, f := range features {
		val, ok := row[f]
		if !ok || val == nil {
			continue
		}
		if s := stringValue(val); s != "" {
			out[featureField(f)] = s
		}
	}
	return out, nil
}

func (p *FeastProvider) CategoryPreferences(ctx context.Context, userID string) (map[string]float64, error) {
	features := make([]string, 0, len(p.PrefCategories))
	for _, cat := range p.PrefCategories {
		features = append(features, p.PrefView+":"+cat)
	}

	row, err := p.fetch(ctx, userID, features)
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(features))
	for _, f := range features {
		val, ok := row[f]
		if !ok || val == nil {
			continue
		}
		if w, ok := floatValue(val); ok {
			out[featureField(f)] = w
		}
	}
	return out, nil
}

// stringValue 从 SDK 的 protobuf Value 提取字符串。
func stringValue(v *feasttypes.Value) string {
	switch val := v.Val.(type) {
	case *feasttypes.Value_StringVal:
		return val.StringVal
	case *feasttypes.Value_BytesVal:
		return string(val.BytesVal)
	default:
		return ""
	}
}

// floatValue 从 SDK 的 protobuf Value 提取数值。
func floatValue(v *feasttypes.Value) (float64, bool) {
	switch val := v.Val.(type) {
	case *feasttypes.Value_DoubleVal:
		return val.DoubleVal, true
	case *feasttypes.Value_FloatVal:
		return float64(val.FloatVal), true
	case *feasttypes.Value_Int64Val:
		return float64(val.Int64Val), true
	case *feasttypes.Value_Int32Val:
		return float64(val.Int32Val), true
	default:
		return 0, false
	}
}

var _ Provider = (*FeastProvider)(nil)
