package script

// Built-in script templates, always available through the registry under
// their bare ids. They double as documentation for the scripting API.

const rotatorTemplate = `-- Rotator: spins the object at a constant rate.
-- Speeds are in degrees per second.
-- @property {number} speedX = 0 [-720, 720]
-- @property {number} speedY = 45 [-720, 720]
-- @property {number} speedZ = 0 [-720, 720]

function update(dt)
    local x, y, z = self:getRotation()
    self:setRotation(
        x + math.rad(speedX) * dt,
        y + math.rad(speedY) * dt,
        z + math.rad(speedZ) * dt)
end
`

const moverTemplate = `-- Mover: slides the object along a direction.
-- @property {number} speed = 2 [0, 100]
-- @property {vector3} direction = (1, 0, 0)

function update(dt)
    local dir = direction
    if dir:length() > 0 then
        dir = dir:normalize()
    end
    self:translate(dir:scale(speed * dt))
end
`

const orbiterTemplate = `-- Orbiter: circles around a named target object.
-- @property {string} target = "Center"
-- @property {number} radius = 5 [0, 1000]
-- @property {number} speed = 1 [-50, 50]

function update(dt)
    state.angle = (state.angle or 0) + speed * dt
    local cx, cy, cz = 0, 0, 0
    local center = scene.find(target)
    if center ~= nil then
        local p = center:getPosition()
        cx, cy, cz = p:x(), p:y(), p:z()
    end
    self:setPosition(
        cx + math.cos(state.angle) * radius,
        cy,
        cz + math.sin(state.angle) * radius)
end
`

const bouncerTemplate = `-- Bouncer: oscillates the object vertically around its start height.
-- @property {number} amplitude = 1 [0, 100]
-- @property {number} frequency = 1 [0, 60]

function start()
    local p = self:getPosition()
    state.baseY = p:y()
end

function update(dt)
    local p = self:getPosition()
    local y = state.baseY + math.sin(time.elapsed() * frequency * 2 * math.pi) * amplitude
    self:setPosition(p:x(), y, p:z())
end
`

const blankTemplate = `-- New script. Define any of the lifecycle hooks below; all are optional.
-- Properties declared with @property show up in the inspector:
-- @property {number} speed = 1 [0, 100]

function start()
end

function update(dt)
end

function fixedUpdate(dt)
end

function onEnable()
end

function onDisable()
end

function onCollisionEnter(other)
end

function onCollisionExit(other)
end

function onDestroy()
end
`

func registerBuiltins(r *Registry) {
	for _, tpl := range []struct {
		id, name, description, code string
	}{
		{"Rotator", "Rotator", "Spins the object at a constant rate", rotatorTemplate},
		{"Mover", "Mover", "Slides the object along a direction", moverTemplate},
		{"Orbiter", "Orbiter", "Circles around a named target object", orbiterTemplate},
		{"Bouncer", "Bouncer", "Oscillates the object vertically", bouncerTemplate},
		{"Blank", "Blank", "Empty script with all hooks stubbed out", blankTemplate},
	} {
		r.builtins[tpl.id] = &Source{
			ID:          tpl.id,
			Name:        tpl.name,
			Description: tpl.description,
			Origin:      OriginBuiltin,
			Code:        tpl.code,
		}
	}
}
