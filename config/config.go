package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 服务全局配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Documents DocumentsConfig `yaml:"documents"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Cache     CacheConfig     `yaml:"cache"`
	Graph     GraphConfig     `yaml:"graph"`

	// Lexicon 领域自定义词典（专有名词，如人名、门派名）
	Lexicon []string `yaml:"lexicon"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level       string   `yaml:"level"`
	Format      string   `yaml:"format"` // json 或 console
	OutputPaths []string `yaml:"output_paths"`
}

// DocumentsConfig 文档目录配置
type DocumentsConfig struct {
	Dir string `yaml:"dir"`
}

// ChunkingConfig 文档分块配置
type ChunkingConfig struct {
	// ChunkSize 分块大小（字符数）
	ChunkSize int `yaml:"chunk_size"`
	// Overlap 相邻分块重叠大小（字符数），必须小于 ChunkSize
	Overlap int `yaml:"overlap"`
}

// EmbeddingConfig 嵌入服务配置
type EmbeddingConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`

	// QueryInstruction 查询指令前缀（BGE 系列模型推荐做法）
	QueryInstruction string `yaml:"query_instruction"`

	BatchSize     int     `yaml:"batch_size"`
	Concurrency   int     `yaml:"concurrency"`
	RatePerSecond float64 `yaml:"rate_per_second"`
}

// LLMConfig 大模型后端配置
type LLMConfig struct {
	BaseURL       string  `yaml:"base_url"`
	APIKey        string  `yaml:"api_key"`
	Model         string  `yaml:"model"`
	MaxTokens     int     `yaml:"max_tokens"`
	Temperature   float32 `yaml:"temperature"`
	RatePerSecond float64 `yaml:"rate_per_second"`

	// MaxContextTokens 提示词中参考文档的 token 预算
	MaxContextTokens int `yaml:"max_context_tokens"`

	EnableCitation bool `yaml:"enable_citation"`
	EnableFollowup bool `yaml:"enable_followup"`
}

// RetrievalConfig 检索配置
type RetrievalConfig struct {
	TopK                int     `yaml:"top_k"`
	RerankTopK          int     `yaml:"rerank_top_k"`
	SimilarityThreshold float32 `yaml:"similarity_threshold"`
}

// CacheConfig 查询缓存配置
type CacheConfig struct {
	// Backend 持久化后端：sqlite 或 redis
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
	File    string `yaml:"file"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig Redis 后端配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// GraphConfig 知识图谱配置
type GraphConfig struct {
	// MaxEntities 导出图谱保留的最高频实体数
	MaxEntities int `yaml:"max_entities"`
	// MinEntityFreq 实体进入导出图谱的最低频次
	MinEntityFreq int `yaml:"min_entity_freq"`
	// MaxContexts 每条关系保留的上下文示例数
	MaxContexts int    `yaml:"max_contexts"`
	OutputDir   string `yaml:"output_dir"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stdout"},
		},
		Documents: DocumentsConfig{
			Dir: "documents",
		},
		Chunking: ChunkingConfig{
			ChunkSize: 300,
			Overlap:   50,
		},
		Embedding: EmbeddingConfig{
			Model:            "bge-large-zh-v1.5",
			QueryInstruction: "为这个句子生成表示以用于检索相关文章：",
			BatchSize:        32,
			Concurrency:      4,
			RatePerSecond:    10,
		},
		LLM: LLMConfig{
			Model:            "gpt-4o-mini",
			MaxTokens:        800,
			Temperature:      0.5,
			RatePerSecond:    5,
			MaxContextTokens: 3000,
			EnableCitation:   true,
			EnableFollowup:   false,
		},
		Retrieval: RetrievalConfig{
			TopK:                10,
			RerankTopK:          6,
			SimilarityThreshold: 0.3,
		},
		Cache: CacheConfig{
			Backend: "sqlite",
			Dir:     ".rag_cache",
			File:    "query_cache.db",
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Graph: GraphConfig{
			MaxEntities:   50,
			MinEntityFreq: 2,
			MaxContexts:   3,
			OutputDir:     "outputs",
		},
	}
}

// Load 从 YAML 文件加载配置并合并默认值；path 为空时返回默认配置。
// API key 可通过环境变量 RAGKB_EMBED_API_KEY / RAGKB_LLM_API_KEY 覆盖。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("RAGKB_EMBED_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("RAGKB_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	// 未单独配置时两个后端共用 OPENAI_API_KEY
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = v
		}
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = v
		}
	}

	return cfg, nil
}

// Validate 校验配置合法性
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.overlap must be in [0, chunk_size), got %d", c.Chunking.Overlap)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.RerankTopK <= 0 || c.Retrieval.RerankTopK > c.Retrieval.TopK {
		return fmt.Errorf("retrieval.rerank_top_k must be in (0, top_k], got %d", c.Retrieval.RerankTopK)
	}
	if c.Retrieval.SimilarityThreshold < -1 || c.Retrieval.SimilarityThreshold > 1 {
		return fmt.Errorf("retrieval.similarity_threshold must be in [-1, 1], got %f", c.Retrieval.SimilarityThreshold)
	}
	switch c.Cache.Backend {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("cache.backend must be sqlite, redis or memory, got %q", c.Cache.Backend)
	}
	if c.Graph.MaxEntities <= 0 {
		return fmt.Errorf("graph.max_entities must be positive, got %d", c.Graph.MaxEntities)
	}
	if c.Graph.MinEntityFreq < 1 {
		return fmt.Errorf("graph.min_entity_freq must be at least 1, got %d", c.Graph.MinEntityFreq)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be in [0, 2], got %f", c.LLM.Temperature)
	}
	return nil
}
