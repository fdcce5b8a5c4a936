package scenario

import (
	"fmt"
	"math"

	"github.com/Shopify/go-lua"
)

const luaScenarioType = "eris.scenario"

// luaInstructionBudget bounds how many VM instructions a scenario script may
// execute before it is aborted.
const luaInstructionBudget = 10_000_000

const luaHookInterval = 1000

// luaScenario accumulates a scenario document while a Lua script runs.
//
//	local s = Scenario.new("blaze_rush")
//	s:difficulty("hard"):preset("duo_rush")
//	s:damage("Alice", "blaze", 6, {delay = 3})
//	s:intervene({{name = "heal_player", args = {player = "Alice"}}})
//	return s
type luaScenario struct {
	meta          map[string]any
	preset        string
	party         map[string]any
	partyOrder    []string
	events        []any
	interventions []any
}

func parseLua(name string, b []byte) (*document, error) {
	state := lua.NewState()
	openSandbox(state)
	registerLuaScenario(state)

	if err := lua.LoadBuffer(state, string(b), name, "t"); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}
	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, fmt.Errorf("scenario script must return a Scenario")
	}
	ls, ok := state.ToUserData(-1).(*luaScenario)
	state.Pop(1)
	if !ok || ls == nil {
		return nil, fmt.Errorf("scenario script returned an invalid Scenario")
	}
	if _, ok := ls.meta["name"]; !ok {
		ls.meta["name"] = name
	}
	return ls.document(), nil
}

// openSandbox opens the base, string, table and math libraries only. The
// file loaders in the base library are removed and a count hook aborts
// scripts that exceed luaInstructionBudget.
func openSandbox(state *lua.State) {
	libs := []lua.RegistryFunction{
		{Name: "_G", Function: lua.BaseOpen},
		{Name: "string", Function: lua.StringOpen},
		{Name: "table", Function: lua.TableOpen},
		{Name: "math", Function: lua.MathOpen},
	}
	for _, lib := range libs {
		lua.Require(state, lib.Name, lib.Function, true)
		state.Pop(1)
	}
	for _, name := range []string{"dofile", "loadfile"} {
		state.PushNil()
		state.SetGlobal(name)
	}

	executed := 0
	lua.SetDebugHook(state, func(l *lua.State, _ lua.Debug) {
		executed += luaHookInterval
		if executed > luaInstructionBudget {
			lua.Errorf(l, "instruction budget of %d exceeded", luaInstructionBudget)
		}
	}, lua.MaskCount, luaHookInterval)
}

func (ls *luaScenario) document() *document {
	data := map[string]any{
		"metadata": ls.meta,
		"events":   ls.events,
	}
	if ls.events == nil {
		data["events"] = []any{}
	}
	switch {
	case ls.preset != "":
		data["party"] = ls.preset
	case ls.party != nil:
		data["party"] = ls.party
	}
	if len(ls.interventions) > 0 {
		data["interventions"] = ls.interventions
	}
	return &document{data: data, partyOrder: ls.partyOrder}
}

func registerLuaScenario(state *lua.State) {
	lua.NewMetaTable(state, luaScenarioType)
	state.NewTable()
	lua.SetFunctions(state, luaScenarioMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)

	state.NewTable()
	lua.SetFunctions(state, []lua.RegistryFunction{{Name: "new", Function: luaScenarioNew}}, 0)
	state.SetGlobal("Scenario")
}

var luaScenarioMethods = []lua.RegistryFunction{
	{Name: "describe", Function: luaDescribe},
	{Name: "difficulty", Function: luaDifficulty},
	{Name: "tags", Function: luaTags},
	{Name: "seed", Function: luaSeed},
	{Name: "preset", Function: luaPreset},
	{Name: "player", Function: luaPlayer},
	{Name: "event", Function: luaEvent},
	{Name: "advancement", Function: luaAdvancement},
	{Name: "damage", Function: luaDamage},
	{Name: "give", Function: luaInventory("add")},
	{Name: "take", Function: luaInventory("remove")},
	{Name: "dimension", Function: luaDimension},
	{Name: "chat", Function: luaChat},
	{Name: "death", Function: luaDeath},
	{Name: "dragon_kill", Function: luaDragonKill},
	{Name: "mob_kill", Function: luaMobKill},
	{Name: "structure", Function: luaStructure},
	{Name: "health", Function: luaHealth},
	{Name: "intervene", Function: luaIntervene},
}

func luaScenarioNew(state *lua.State) int {
	ls := &luaScenario{meta: map[string]any{}}
	if name := lua.OptString(state, 1, ""); name != "" {
		ls.meta["name"] = name
	}
	state.PushUserData(ls)
	lua.SetMetaTableNamed(state, luaScenarioType)
	return 1
}

func checkLuaScenario(state *lua.State) *luaScenario {
	ud := lua.CheckUserData(state, 1, luaScenarioType)
	if ls, ok := ud.(*luaScenario); ok && ls != nil {
		return ls
	}
	lua.ArgumentError(state, 1, "Scenario expected")
	return nil
}

// self returns the scenario so calls can be chained.
func self(state *lua.State) int {
	state.PushValue(1)
	return 1
}

func luaDescribe(state *lua.State) int {
	checkLuaScenario(state).meta["description"] = lua.CheckString(state, 2)
	return self(state)
}

func luaDifficulty(state *lua.State) int {
	checkLuaScenario(state).meta["difficulty"] = lua.CheckString(state, 2)
	return self(state)
}

func luaTags(state *lua.State) int {
	ls := checkLuaScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	ls.meta["tags"] = tableToGo(state, 2)
	return self(state)
}

func luaSeed(state *lua.State) int {
	checkLuaScenario(state).meta["seed"] = lua.CheckInteger(state, 2)
	return self(state)
}

func luaPreset(state *lua.State) int {
	ls := checkLuaScenario(state)
	ls.preset = lua.CheckString(state, 2)
	ls.party, ls.partyOrder = nil, nil
	return self(state)
}

func luaPlayer(state *lua.State) int {
	ls := checkLuaScenario(state)
	name := lua.CheckString(state, 2)
	def := optionalTable(state, 3)
	if _, ok := def["role"]; !ok {
		def["role"] = "runner"
	}
	if ls.party == nil {
		ls.party = map[string]any{}
	}
	if _, dup := ls.party[name]; !dup {
		ls.partyOrder = append(ls.partyOrder, name)
	}
	ls.party[name] = def
	ls.preset = ""
	return self(state)
}

// appendEvent merges the optional options table at index opts into fields.
func appendEvent(state *lua.State, ls *luaScenario, fields map[string]any, opts int) int {
	for k, v := range optionalTable(state, opts) {
		if _, set := fields[k]; !set {
			fields[k] = v
		}
	}
	ls.events = append(ls.events, fields)
	return self(state)
}

func luaEvent(state *lua.State) int {
	ls := checkLuaScenario(state)
	fields := optionalTable(state, 3)
	fields["type"] = lua.CheckString(state, 2)
	ls.events = append(ls.events, fields)
	return self(state)
}

func luaAdvancement(state *lua.State) int {
	ls := checkLuaScenario(state)
	return appendEvent(state, ls, map[string]any{
		"type":        "advancement",
		"player":      lua.CheckString(state, 2),
		"advancement": lua.CheckString(state, 3),
	}, 4)
}

func luaDamage(state *lua.State) int {
	ls := checkLuaScenario(state)
	return appendEvent(state, ls, map[string]any{
		"type":   "damage",
		"player": lua.CheckString(state, 2),
		"source": lua.CheckString(state, 3),
		"amount": normalizeNumber(lua.CheckNumber(state, 4)),
	}, 5)
}

func luaInventory(action string) lua.Function {
	return func(state *lua.State) int {
		ls := checkLuaScenario(state)
		return appendEvent(state, ls, map[string]any{
			"type":   "inventory",
			"action": action,
			"player": lua.CheckString(state, 2),
			"item":   lua.CheckString(state, 3),
			"count":  lua.OptInteger(state, 4, 1),
		}, 5)
	}
}

func luaDimension(state *lua.State) int {
	ls := checkLuaScenario(state)
	return appendEvent(state, ls, map[string]any{
		"type":   "dimension",
		"player": lua.CheckString(state, 2),
		"from":   lua.CheckString(state, 3),
		"to":     lua.CheckString(state, 4),
	}, 5)
}

func luaChat(state *lua.State) int {
	ls := checkLuaScenario(state)
	return appendEvent(state, ls, map[string]any{
		"type":    "chat",
		"player":  lua.CheckString(state, 2),
		"message": lua.CheckString(state, 3),
	}, 4)
}

func luaDeath(state *lua.State) int {
	ls := checkLuaScenario(state)
	fields := map[string]any{"type": "death", "player": lua.CheckString(state, 2)}
	if cause := lua.OptString(state, 3, ""); cause != "" {
		fields["cause"] = cause
	}
	return appendEvent(state, ls, fields, 4)
}

func luaDragonKill(state *lua.State) int {
	ls := checkLuaScenario(state)
	fields := map[string]any{"type": "dragon_kill"}
	opts := 2
	if state.TypeOf(2) == lua.TypeString {
		fields["player"], _ = state.ToString(2)
		opts = 3
	}
	return appendEvent(state, ls, fields, opts)
}

func luaMobKill(state *lua.State) int {
	ls := checkLuaScenario(state)
	return appendEvent(state, ls, map[string]any{
		"type":   "mob_kill",
		"player": lua.CheckString(state, 2),
		"mob":    lua.CheckString(state, 3),
		"count":  lua.OptInteger(state, 4, 1),
	}, 5)
}

func luaStructure(state *lua.State) int {
	ls := checkLuaScenario(state)
	return appendEvent(state, ls, map[string]any{
		"type":      "structure",
		"player":    lua.CheckString(state, 2),
		"structure": lua.CheckString(state, 3),
	}, 4)
}

func luaHealth(state *lua.State) int {
	ls := checkLuaScenario(state)
	fields := map[string]any{
		"type":   "health",
		"player": lua.CheckString(state, 2),
		"health": normalizeNumber(lua.CheckNumber(state, 3)),
	}
	opts := 4
	if state.TypeOf(4) == lua.TypeNumber {
		fields["food"] = lua.CheckInteger(state, 4)
		opts = 5
	}
	return appendEvent(state, ls, fields, opts)
}

// luaIntervene attaches scripted tool calls to the most recently added event.
func luaIntervene(state *lua.State) int {
	ls := checkLuaScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	if len(ls.events) == 0 {
		lua.Errorf(state, "intervene called before any event")
		return 0
	}
	tools := tableToGo(state, 2)
	if _, isList := tools.([]any); !isList {
		tools = []any{tools}
	}
	ls.interventions = append(ls.interventions, map[string]any{
		"after": len(ls.events) - 1,
		"tools": tools,
	})
	return self(state)
}

func optionalTable(state *lua.State, index int) map[string]any {
	if state.IsNoneOrNil(index) || state.TypeOf(index) != lua.TypeTable {
		return map[string]any{}
	}
	return tableToMap(state, index)
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}
	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(state, index)
	default:
		return nil
	}
}

// tableToGo returns a list for tables with keys 1..n and a map otherwise.
// An empty table becomes an empty map.
func tableToGo(state *lua.State, index int) any {
	if state.TypeOf(index) != lua.TypeTable {
		return nil
	}
	index = state.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	state.PushNil()
	for state.Next(index) {
		if isArray {
			if state.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := state.ToInteger(-2); ok && idx > 0 {
				count++
				maxIndex = max(maxIndex, idx)
			} else {
				isArray = false
			}
		}
		state.Pop(1)
	}
	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			result = append(result, luaToGo(state, -1))
			state.Pop(1)
		}
		return result
	}
	return tableToMap(state, index)
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 && math.Abs(value) < 1<<53 {
		return int(value)
	}
	return value
}
