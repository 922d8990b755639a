// Package markovkit 是一个隐私保护的行为序列推荐工具包。
//
// 设计要点：
// - 行为链建模: 多阶转移表 + 全局/个人混合预测 + 类别感知调权（markov 包）
// - 隐私分级: RAW / ANONYMIZED / NOISY / ENCRYPTED 四级脱敏（privacy 包）
// - Pipeline-first: 召回 → 过滤 → 排序 → 截断，Node 可插拔（pipeline 包）
// - 快照可搬运: 模型导出为内容寻址的快照，存取经 BlobStore（store 包）
package markovkit

import "github.com/rushteam/markovkit/pipeline"

// 轻量 facade：便于用户直接 import "markovkit" 使用核心抽象。
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind

const (
	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindRank        = pipeline.KindRank
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)
