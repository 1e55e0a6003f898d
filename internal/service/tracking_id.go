package service

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/bwmarrin/snowflake"
)

const (
	trackingIDSuffixLength = 8
	trackingIDAlphabet     = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// TrackingIDGenerator 追踪ID生成器：snowflake base36 + 随机后缀
type TrackingIDGenerator struct {
	node *snowflake.Node
}

// NewTrackingIDGenerator 创建追踪ID生成器，nodeID 取值 0-1023
func NewTrackingIDGenerator(nodeID int64) (*TrackingIDGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &TrackingIDGenerator{node: node}, nil
}

// Generate 生成追踪ID，仅包含小写字母、数字与 '-'
func (g *TrackingIDGenerator) Generate() (string, error) {
	suffix, err := randomTrackingSuffix(trackingIDSuffixLength)
	if err != nil {
		return "", err
	}
	return g.node.Generate().Base36() + "-" + suffix, nil
}

func randomTrackingSuffix(length int) (string, error) {
	var builder strings.Builder
	builder.Grow(length)
	max := big.NewInt(int64(len(trackingIDAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		builder.WriteByte(trackingIDAlphabet[n.Int64()])
	}
	return builder.String(), nil
}
