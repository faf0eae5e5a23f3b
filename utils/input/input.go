package input

import (
	"context"
	"fmt"
	"os"
	"time"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/yaml.v2"

	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/sim/scenario"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/utils/config"
)

var log = logrus.WithField("module", "input")

const mongoTimeout = 30 * time.Second

// rsuDoc RSU静态表条目的外部表示（YAML文件与MongoDB共用）
type rsuDoc struct {
	ID          string  `yaml:"id" bson:"id"`
	X           float64 `yaml:"x" bson:"x"`
	Y           float64 `yaml:"y" bson:"y"`
	Tier        string  `yaml:"tier" bson:"tier"`
	Junction    string  `yaml:"junction,omitempty" bson:"junction,omitempty"`
	Radius      float64 `yaml:"radius" bson:"radius"`
	Description string  `yaml:"description,omitempty" bson:"description,omitempty"`
}

// Input 输入数据
// 功能：存储仿真所需的所有输入数据
// 说明：包含RSU静态表与路网场景定义，支持从文件或MongoDB加载，
// 文件路径配置的优先级高于数据库
type Input struct {
	RSUs     []entity.RSUDefinition
	Scenario *scenario.Definition
}

// Init 下载数据
// 功能：根据配置加载所有输入数据
// 参数：cfg-输入配置
// 返回：加载完成的输入数据指针
// 算法说明：
// 1. 数据库连接：配置了MongoDB URI且有数据走库时建立连接
// 2. RSU静态表加载：文件或MongoDB，解析级别字符串并转为内部定义
// 3. 场景定义加载：文件或MongoDB（单文档）
// 说明：只做格式级解析，跨表一致性校验（如关联路口是否存在）
// 由RSU注册表的Validate在拓扑可用后完成
func Init(cfg config.Input) (*Input, error) {
	var client *mongo.Client
	if cfg.URI != "" && (cfg.RSU.File == "" || cfg.Scenario.File == "") {
		ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
		defer cancel()
		var err error
		client, err = mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
		if err != nil {
			return nil, fmt.Errorf("input: connect mongodb: %w", err)
		}
		defer client.Disconnect(context.Background())
	}

	res := &Input{}

	docs, err := loadRSUDocs(client, cfg.RSU)
	if err != nil {
		return nil, err
	}
	res.RSUs = make([]entity.RSUDefinition, 0, len(docs))
	for _, d := range docs {
		tier, err := entity.ParseTier(d.Tier)
		if err != nil {
			return nil, fmt.Errorf("input: rsu %s: %w", d.ID, err)
		}
		res.RSUs = append(res.RSUs, entity.RSUDefinition{
			ID:          d.ID,
			Position:    geometry.Point{X: d.X, Y: d.Y},
			Tier:        tier,
			JunctionID:  d.Junction,
			Radius:      d.Radius,
			Description: d.Description,
		})
	}
	log.Infof("load %d rsu definitions", len(res.RSUs))

	def, err := loadScenario(client, cfg.Scenario)
	if err != nil {
		return nil, err
	}
	res.Scenario = def
	log.Infof("load scenario: %d junctions, %d edges, %d traffic lights, %d routes",
		len(def.Junctions), len(def.Edges), len(def.TrafficLights), len(def.Routes))
	return res, nil
}

// loadRSUDocs 加载RSU静态表条目
func loadRSUDocs(client *mongo.Client, path config.InputPath) ([]rsuDoc, error) {
	if path.File != "" {
		data, err := os.ReadFile(path.File)
		if err != nil {
			return nil, fmt.Errorf("input: read rsu file: %w", err)
		}
		var docs []rsuDoc
		if err := yaml.UnmarshalStrict(data, &docs); err != nil {
			return nil, fmt.Errorf("input: parse rsu file %s: %w", path.File, err)
		}
		return docs, nil
	}
	if client == nil {
		return nil, fmt.Errorf("input: rsu source is mongodb but no uri configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	coll := client.Database(path.DB).Collection(path.Col)
	log.Infof("start fetching from %s.%s", path.DB, path.Col)
	cur, err := coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"id": 1}))
	if err != nil {
		return nil, fmt.Errorf("input: fetch rsu from %s.%s: %w", path.DB, path.Col, err)
	}
	var docs []rsuDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("input: decode rsu from %s.%s: %w", path.DB, path.Col, err)
	}
	log.Infof("finish fetching from %s.%s", path.DB, path.Col)
	return docs, nil
}

// loadScenario 加载路网场景定义（MongoDB中为单文档）
func loadScenario(client *mongo.Client, path config.InputPath) (*scenario.Definition, error) {
	if path.File != "" {
		data, err := os.ReadFile(path.File)
		if err != nil {
			return nil, fmt.Errorf("input: read scenario file: %w", err)
		}
		var def scenario.Definition
		if err := yaml.UnmarshalStrict(data, &def); err != nil {
			return nil, fmt.Errorf("input: parse scenario file %s: %w", path.File, err)
		}
		return &def, nil
	}
	if client == nil {
		return nil, fmt.Errorf("input: scenario source is mongodb but no uri configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	coll := client.Database(path.DB).Collection(path.Col)
	log.Infof("start fetching from %s.%s", path.DB, path.Col)
	var def scenario.Definition
	if err := coll.FindOne(ctx, bson.M{}).Decode(&def); err != nil {
		return nil, fmt.Errorf("input: fetch scenario from %s.%s: %w", path.DB, path.Col, err)
	}
	log.Infof("finish fetching from %s.%s", path.DB, path.Col)
	return &def, nil
}
