package scenario

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/entity"
)

var log = logrus.WithField("module", "scenario")

var (
	ErrNoSuchVehicle = errors.New("scenario: no such vehicle")
	ErrNoSuchEntity  = errors.New("scenario: no such entity")
)

// vehicle 车辆运行时状态
type vehicle struct {
	id        string
	typeLabel string
	route     []string // 有序边ID列表
	edgeIdx   int      // 当前边在路线中的索引
	s         float64  // 当前边上已行驶距离（米）
	speed     float64  // 期望速度（米/秒）
	curSpeed  float64  // 本tick实际速度（被红灯拦停时为0）
}

// trafficLight 信号灯运行时状态
type trafficLight struct {
	def        TrafficLightDef
	phase      int     // 当前相位索引
	remainingT float64 // 当前相位剩余时间（秒）
	forced     string  // 外部写入的状态串，非空时覆盖程序相位，直到下次SetPhase
}

// states 获取当前生效状态串
func (tl *trafficLight) states() string {
	if tl.forced != "" {
		return tl.forced
	}
	if len(tl.def.Phases) == 0 {
		return ""
	}
	return tl.def.Phases[tl.phase].States
}

// Simulator 进程内场景模拟器
// 功能：实现外部模拟器能力契约的最小内置实现，用于独立运行与测试
// 说明：路网静态不可变；车辆沿路线等速推进，边末端遇红灯保持等待；
// 生产部署用同一接口接入真实模拟器适配层
type Simulator struct {
	def Definition

	junctions    map[string]JunctionDef
	edges        map[string]EdgeDef
	routes       map[string][]string
	lights       map[string]*trafficLight
	tlByJunction map[string]string // 路口ID->控制信号灯ID

	vehicles map[string]*vehicle
	ordered  []string // 车辆ID（进入顺序），保证枚举确定性

	pending   []VehicleDef // 尚未到达depart tick的初始车辆
	tick      int
	signature string
}

// New 根据场景定义创建模拟器
// 功能：建立路网索引、信号灯运行时与初始车辆投放计划
func New(def Definition) *Simulator {
	s := &Simulator{
		def:          def,
		junctions:    make(map[string]JunctionDef),
		edges:        make(map[string]EdgeDef),
		routes:       make(map[string][]string),
		lights:       make(map[string]*trafficLight),
		tlByJunction: make(map[string]string),
		vehicles:     make(map[string]*vehicle),
	}
	for _, j := range def.Junctions {
		s.junctions[j.ID] = j
	}
	for _, e := range def.Edges {
		s.edges[e.ID] = e
	}
	for _, r := range def.Routes {
		s.routes[r.ID] = r.Edges
	}
	for _, t := range def.TrafficLights {
		tl := &trafficLight{def: t}
		if len(t.Phases) > 0 {
			tl.remainingT = t.Phases[0].Duration
		}
		s.lights[t.ID] = tl
		if _, ok := s.junctions[t.ID]; ok {
			s.tlByJunction[t.ID] = t.ID
		}
		for _, j := range t.Junctions {
			if _, ok := s.tlByJunction[j]; !ok {
				s.tlByJunction[j] = t.ID
			}
		}
	}
	for _, v := range def.Vehicles {
		if v.Depart <= 0 {
			s.spawn(v)
		} else {
			s.pending = append(s.pending, v)
		}
	}
	s.signature = computeSignature(def)
	return s
}

// spawn 将车辆定义投放到路线起点
func (s *Simulator) spawn(v VehicleDef) {
	route, ok := s.routes[v.Route]
	if !ok || len(route) == 0 {
		log.Warnf("vehicle %s: unknown route %s, dropped", v.ID, v.Route)
		return
	}
	if _, ok := s.vehicles[v.ID]; ok {
		log.Warnf("vehicle %s: duplicated id, dropped", v.ID)
		return
	}
	s.vehicles[v.ID] = &vehicle{
		id:        v.ID,
		typeLabel: v.Type,
		route:     route,
		speed:     v.Speed,
		curSpeed:  v.Speed,
	}
	s.ordered = append(s.ordered, v.ID)
}

// edgeLength 获取边长度，定义缺省时用两端路口直线距离
func (s *Simulator) edgeLength(e EdgeDef) float64 {
	if e.Length > 0 {
		return e.Length
	}
	from, okF := s.junctions[e.From]
	to, okT := s.junctions[e.To]
	if !okF || !okT {
		return 0
	}
	return math.Hypot(to.X-from.X, to.Y-from.Y)
}

// Step 推进一个tick
// 功能：先推进信号灯相位，再推进所有车辆
// 参数：dt-时间步长（秒）
// 算法说明（车辆推进）：
// 1. s += v*dt，超出边长时检查边末端路口的信号灯
// 2. 下一连接为绿（'G'/'g'）或无信控时跨入下一条边，否则停在边末端（本tick速度0）
// 3. 走完最后一条边的车辆离开模拟（路线完成）
func (s *Simulator) Step(dt float64) error {
	s.tick++
	// 投放到期的初始车辆
	rest := s.pending[:0]
	for _, v := range s.pending {
		if v.Depart <= s.tick {
			s.spawn(v)
		} else {
			rest = append(rest, v)
		}
	}
	s.pending = rest

	for _, tl := range s.lights {
		if len(tl.def.Phases) < 2 || tl.forced != "" {
			continue
		}
		tl.remainingT -= dt
		for tl.remainingT <= 0 {
			tl.phase = (tl.phase + 1) % len(tl.def.Phases)
			tl.remainingT += tl.def.Phases[tl.phase].Duration
		}
	}

	finished := make([]string, 0)
	for _, id := range s.ordered {
		v := s.vehicles[id]
		v.curSpeed = v.speed
		advance := v.speed * dt
		for advance > 0 {
			edge, ok := s.edges[v.route[v.edgeIdx]]
			if !ok {
				finished = append(finished, id)
				break
			}
			length := s.edgeLength(edge)
			if v.s+advance < length {
				v.s += advance
				break
			}
			// 到达边末端
			if v.edgeIdx+1 >= len(v.route) {
				finished = append(finished, id)
				break
			}
			if !s.mayCross(v) {
				v.s = length
				v.curSpeed = 0
				break
			}
			advance -= length - v.s
			v.edgeIdx++
			v.s = 0
		}
	}
	for _, id := range finished {
		s.removeVehicle(id)
	}
	return nil
}

// mayCross 检查车辆能否跨过当前边末端路口
// 说明：查找控制该路口的信号灯中(当前车道->下一车道)连接的状态，
// 绿灯或找不到对应连接/信号灯时放行
func (s *Simulator) mayCross(v *vehicle) bool {
	edge, ok := s.edges[v.route[v.edgeIdx]]
	if !ok {
		return true
	}
	tlID, ok := s.tlByJunction[edge.To]
	if !ok {
		return true
	}
	tl := s.lights[tlID]
	states := tl.states()
	curLane := v.route[v.edgeIdx] + "_0"
	nextLane := v.route[v.edgeIdx+1] + "_0"
	for i, l := range tl.def.Links {
		if l.From == curLane && l.To == nextLane {
			if i >= len(states) {
				return true
			}
			st := entity.LightState(states[i])
			return st == entity.LightStateGreen || st == entity.LightStateGreenMinor
		}
	}
	return true
}

// removeVehicle 将车辆移出模拟
func (s *Simulator) removeVehicle(id string) {
	if _, ok := s.vehicles[id]; !ok {
		return
	}
	delete(s.vehicles, id)
	for i, x := range s.ordered {
		if x == id {
			s.ordered = append(s.ordered[:i], s.ordered[i+1:]...)
			break
		}
	}
}

// 以下实现entity.ISimulator

// VehicleIDs 获取当前所有活跃车辆ID（进入顺序）
func (s *Simulator) VehicleIDs() ([]string, error) {
	out := make([]string, len(s.ordered))
	copy(out, s.ordered)
	return out, nil
}

// Vehicle 获取单个车辆的运行时快照
func (s *Simulator) Vehicle(id string) (entity.VehicleSnapshot, error) {
	v, ok := s.vehicles[id]
	if !ok {
		return entity.VehicleSnapshot{}, fmt.Errorf("%w: %s", ErrNoSuchVehicle, id)
	}
	edgeID := v.route[v.edgeIdx]
	pos, heading := s.positionOnEdge(edgeID, v.s)
	return entity.VehicleSnapshot{
		ID:           id,
		Position:     pos,
		Speed:        v.curSpeed,
		Heading:      heading,
		EdgeID:       edgeID,
		LaneID:       edgeID + "_0",
		LanePosition: v.s,
		TypeLabel:    v.typeLabel,
		Route:        v.route,
	}, nil
}

// positionOnEdge 沿边线性插值坐标与航向角（度，0为正东，逆时针）
func (s *Simulator) positionOnEdge(edgeID string, dist float64) (geometry.Point, float64) {
	edge, ok := s.edges[edgeID]
	if !ok {
		return geometry.Point{}, 0
	}
	from, okF := s.junctions[edge.From]
	to, okT := s.junctions[edge.To]
	if !okF || !okT {
		return geometry.Point{}, 0
	}
	length := s.edgeLength(edge)
	t := 0.0
	if length > 0 {
		t = dist / length
		if t > 1 {
			t = 1
		}
	}
	pos := geometry.Point{
		X: from.X + (to.X-from.X)*t,
		Y: from.Y + (to.Y-from.Y)*t,
	}
	heading := math.Atan2(to.Y-from.Y, to.X-from.X) * 180 / math.Pi
	if heading < 0 {
		heading += 360
	}
	return pos, heading
}

// JunctionIDs 获取所有路口ID（定义顺序）
func (s *Simulator) JunctionIDs() ([]string, error) {
	out := make([]string, 0, len(s.def.Junctions))
	for _, j := range s.def.Junctions {
		out = append(out, j.ID)
	}
	return out, nil
}

// JunctionPosition 获取路口坐标
func (s *Simulator) JunctionPosition(id string) (geometry.Point, error) {
	j, ok := s.junctions[id]
	if !ok {
		return geometry.Point{}, fmt.Errorf("%w: junction %s", ErrNoSuchEntity, id)
	}
	return geometry.Point{X: j.X, Y: j.Y}, nil
}

// EdgeIDs 获取所有边ID（定义顺序）
func (s *Simulator) EdgeIDs() ([]string, error) {
	out := make([]string, 0, len(s.def.Edges))
	for _, e := range s.def.Edges {
		out = append(out, e.ID)
	}
	return out, nil
}

// EdgeEndpoints 获取边的起止路口ID
func (s *Simulator) EdgeEndpoints(id string) (string, string, error) {
	e, ok := s.edges[id]
	if !ok {
		return "", "", fmt.Errorf("%w: edge %s", ErrNoSuchEntity, id)
	}
	return e.From, e.To, nil
}

// TrafficLightIDs 获取所有信号灯ID（定义顺序）
func (s *Simulator) TrafficLightIDs() ([]string, error) {
	out := make([]string, 0, len(s.def.TrafficLights))
	for _, t := range s.def.TrafficLights {
		out = append(out, t.ID)
	}
	return out, nil
}

// ControlledJunctions 获取信号灯控制的路口集合
func (s *Simulator) ControlledJunctions(tlID string) ([]string, error) {
	tl, ok := s.lights[tlID]
	if !ok {
		return nil, fmt.Errorf("%w: traffic light %s", ErrNoSuchEntity, tlID)
	}
	return tl.def.Junctions, nil
}

// ControlledLinks 获取信号灯的受控连接表
func (s *Simulator) ControlledLinks(tlID string) ([]entity.Link, error) {
	tl, ok := s.lights[tlID]
	if !ok {
		return nil, fmt.Errorf("%w: traffic light %s", ErrNoSuchEntity, tlID)
	}
	links := make([]entity.Link, 0, len(tl.def.Links))
	for _, l := range tl.def.Links {
		links = append(links, entity.Link{FromLane: l.From, ToLane: l.To})
	}
	return links, nil
}

// ControlledLanes 获取信号灯的受控车道列表（按连接表顺序，含重复）
func (s *Simulator) ControlledLanes(tlID string) ([]string, error) {
	tl, ok := s.lights[tlID]
	if !ok {
		return nil, fmt.Errorf("%w: traffic light %s", ErrNoSuchEntity, tlID)
	}
	lanes := make([]string, 0, len(tl.def.Links))
	for _, l := range tl.def.Links {
		lanes = append(lanes, l.From)
	}
	return lanes, nil
}

// Program 获取当前信控程序
func (s *Simulator) Program(tlID string) (entity.Program, error) {
	tl, ok := s.lights[tlID]
	if !ok {
		return entity.Program{}, fmt.Errorf("%w: traffic light %s", ErrNoSuchEntity, tlID)
	}
	phases := make([]entity.Phase, 0, len(tl.def.Phases))
	for _, p := range tl.def.Phases {
		phases = append(phases, entity.Phase{States: p.States, Duration: p.Duration})
	}
	return entity.Program{Phases: phases}, nil
}

// CurrentPhase 获取当前相位索引
func (s *Simulator) CurrentPhase(tlID string) (int, error) {
	tl, ok := s.lights[tlID]
	if !ok {
		return 0, fmt.Errorf("%w: traffic light %s", ErrNoSuchEntity, tlID)
	}
	return tl.phase, nil
}

// SetPhase 切换到指定相位（清除外部写入的状态串）
func (s *Simulator) SetPhase(tlID string, index int) error {
	tl, ok := s.lights[tlID]
	if !ok {
		return fmt.Errorf("%w: traffic light %s", ErrNoSuchEntity, tlID)
	}
	if index < 0 || index >= len(tl.def.Phases) {
		return fmt.Errorf("scenario: traffic light %s has no phase %d", tlID, index)
	}
	tl.phase = index
	tl.remainingT = tl.def.Phases[index].Duration
	tl.forced = ""
	return nil
}

// SetSignalStates 直接写入状态串，持续生效直到下次SetPhase
func (s *Simulator) SetSignalStates(tlID string, states string) error {
	tl, ok := s.lights[tlID]
	if !ok {
		return fmt.Errorf("%w: traffic light %s", ErrNoSuchEntity, tlID)
	}
	if len(states) != len(tl.def.Links) {
		return fmt.Errorf("scenario: traffic light %s expects %d states, got %d", tlID, len(tl.def.Links), len(states))
	}
	tl.forced = states
	return nil
}

// LaneShape 获取车道几何（直线段：起点路口->终点路口）
func (s *Simulator) LaneShape(laneID string) ([]geometry.Point, error) {
	edgeID := entity.Link{FromLane: laneID}.SourceEdge()
	e, ok := s.edges[edgeID]
	if !ok {
		return nil, fmt.Errorf("%w: lane %s", ErrNoSuchEntity, laneID)
	}
	from, okF := s.junctions[e.From]
	to, okT := s.junctions[e.To]
	if !okF || !okT {
		return nil, fmt.Errorf("%w: lane %s endpoints", ErrNoSuchEntity, laneID)
	}
	return []geometry.Point{{X: from.X, Y: from.Y}, {X: to.X, Y: to.Y}}, nil
}

// RouteIDs 获取所有命名路线ID（定义顺序）
func (s *Simulator) RouteIDs() ([]string, error) {
	out := make([]string, 0, len(s.def.Routes))
	for _, r := range s.def.Routes {
		out = append(out, r.ID)
	}
	return out, nil
}

// CreateVehicle 在命名路线上创建车辆
func (s *Simulator) CreateVehicle(id, routeID string, opts entity.VehicleOptions) error {
	if _, ok := s.routes[routeID]; !ok {
		return fmt.Errorf("%w: route %s", ErrNoSuchEntity, routeID)
	}
	if _, ok := s.vehicles[id]; ok {
		return fmt.Errorf("scenario: vehicle %s already exists", id)
	}
	s.spawn(VehicleDef{ID: id, Route: routeID, Type: opts.TypeLabel, Speed: opts.Speed})
	return nil
}

// RemoveVehicle 移除车辆
func (s *Simulator) RemoveVehicle(id string) error {
	if _, ok := s.vehicles[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchVehicle, id)
	}
	s.removeVehicle(id)
	return nil
}

// NetworkSignature 获取路网签名（路网定义不变则签名不变）
func (s *Simulator) NetworkSignature() string {
	return s.signature
}

// RouteEdges 获取命名路线的边列表（环境层选取投放路线用）
func (s *Simulator) RouteEdges(routeID string) ([]string, bool) {
	r, ok := s.routes[routeID]
	return r, ok
}

// computeSignature 对路网静态部分求FNV哈希
func computeSignature(def Definition) string {
	h := fnv.New64a()
	for _, j := range def.Junctions {
		fmt.Fprintf(h, "j:%s:%f:%f;", j.ID, j.X, j.Y)
	}
	for _, e := range def.Edges {
		fmt.Fprintf(h, "e:%s:%s:%s:%f;", e.ID, e.From, e.To, e.Length)
	}
	for _, t := range def.TrafficLights {
		fmt.Fprintf(h, "t:%s:%v:%v;", t.ID, t.Junctions, t.Links)
		for _, p := range t.Phases {
			fmt.Fprintf(h, "p:%s:%f;", p.States, p.Duration)
		}
	}
	return fmt.Sprintf("%x", h.Sum64())
}
