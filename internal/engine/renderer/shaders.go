package renderer

const vertexShader = `
#version 410 core

layout (location = 0) in vec3 aPos;
layout (location = 1) in vec3 aNormal;
layout (location = 2) in vec2 aTexCoord;

uniform mat4 uViewProj;

out vec3 vNormal;
out vec2 vTexCoord;

void main() {
    vNormal = aNormal;
    vTexCoord = aTexCoord;
    gl_Position = uViewProj * vec4(aPos, 1.0);
}
`

const fragmentShader = `
#version 410 core

in vec3 vNormal;
in vec2 vTexCoord;

uniform sampler2D uTexture;
uniform bool uTextured;

out vec4 FragColor;

void main() {
    if (uTextured) {
        FragColor = vec4(texture(uTexture, vTexCoord).rgb, 1.0);
    } else {
        FragColor = vec4(normalize(vNormal) * 0.5 + 0.5, 1.0);
    }
}
`
